package kasa

// SysInfo is the get_sysinfo payload of a plug or power strip.
type SysInfo struct {
	Alias           string      `json:"alias"`
	Model           string      `json:"model"`
	DeviceID        string      `json:"deviceId"`
	MAC             string      `json:"mac"`
	MicMAC          string      `json:"mic_mac"`
	SoftwareVersion string      `json:"sw_ver"`
	HardwareVersion string      `json:"hw_ver"`
	RelayState      int         `json:"relay_state"`
	OnTime          int         `json:"on_time"`
	ChildNum        int         `json:"child_num"`
	Children        []ChildInfo `json:"children"`
	ErrCode         int         `json:"err_code"`
	ErrMsg          string      `json:"err_msg"`
}

// ChildInfo describes one outlet of a power strip.
type ChildInfo struct {
	ID     string `json:"id"`
	Alias  string `json:"alias"`
	State  int    `json:"state"`
	OnTime int    `json:"on_time"`
}

// MACAddress returns whichever MAC field the model populates.
func (s *SysInfo) MACAddress() string {
	if s.MAC != "" {
		return s.MAC
	}
	return s.MicMAC
}

// IsStrip reports whether the device has child outlets.
func (s *SysInfo) IsStrip() bool {
	return len(s.Children) > 0
}

// sysInfoRequest is {"system":{"get_sysinfo":{}}}.
type sysInfoRequest struct {
	System struct {
		GetSysInfo struct{} `json:"get_sysinfo"`
	} `json:"system"`
}

type sysInfoResponse struct {
	System struct {
		GetSysInfo *SysInfo `json:"get_sysinfo"`
	} `json:"system"`
}

type requestContext struct {
	ChildIDs []string `json:"child_ids"`
}

type relayStateRequest struct {
	Context *requestContext `json:"context,omitempty"`
	System  struct {
		SetRelayState struct {
			State int `json:"state"`
		} `json:"set_relay_state"`
	} `json:"system"`
}

type relayStateResponse struct {
	System struct {
		SetRelayState *struct {
			ErrCode int    `json:"err_code"`
			ErrMsg  string `json:"err_msg"`
		} `json:"set_relay_state"`
	} `json:"system"`
}
