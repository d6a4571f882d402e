package signal

// Outbound
type loginMsg struct {
	Type     string `json:"type"`
	User     string `json:"user"`
	Password string `json:"password"`
	Label    string `json:"label"`
	Mode     string `json:"mode"`
}

type publishMsg struct {
	Type       string `json:"type"`
	SDP        string `json:"sdp"`
	VideoCodec string `json:"videoCodec"`
	AudioCodec string `json:"audioCodec"`
	Label      string `json:"label"`
	Audio      bool   `json:"audio"`
}

// Both directions
type candidateMsg struct {
	Type          string `json:"type"`
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid,omitempty"`
	SDPMLineIndex int    `json:"sdpMLineIndex"`
}

type typeMsg struct {
	Type string `json:"type"`
}

// Inbound
type answerMsg struct {
	SDP string `json:"sdp"`
}

type errorMsg struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

const (
	typeLogin           = "login"
	typeLoggedIn        = "logged_in"
	typeLoginError      = "login_error"
	typePublish         = "publish"
	typeAnswer          = "answer"
	typePublishError    = "publish_error"
	typeCandidate       = "candidate"
	typeEndOfCandidates = "end_of_candidates"
	typePing            = "ping"
	typePong            = "pong"
	typeBye             = "bye"
	typeError           = "error"
)
