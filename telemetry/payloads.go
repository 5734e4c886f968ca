package telemetry

// Alert is published once per detected trail-through.
type Alert struct {
	TS        float64 `json:"ts"`
	SectionID string  `json:"section_id"`
}

// TrailThroughClear acknowledges a trail-through alarm for one section.
type TrailThroughClear struct {
	SectionID string `json:"section_id"`
}

// TorpedoInfo reassigns the torpedo identifier carried on a section.
type TorpedoInfo struct {
	SectionID string `json:"section_id"`
	TorpedoID string `json:"torpedo_id"`
}

// SectionReset is an operator request to reset a section's axle counters.
type SectionReset struct {
	Username    string `json:"username"`
	SectionID   string `json:"section_id"`
	SectionName string `json:"section_name,omitempty"`
}

// DPReset is an operator request to reset a detection point.
type DPReset struct {
	Username string `json:"username"`
	DPID     string `json:"dp_id"`
}

// DPResetCommand is forwarded to the counters once a DPReset is authorised.
type DPResetCommand struct {
	DPID     string `json:"dp_id"`
	InCount  int    `json:"in_count"`
	OutCount int    `json:"out_count"`
}

// SectionResetCommand is forwarded to the counters once a SectionReset is
// authorised. DPIDs lists the detection points bounding the section.
type SectionResetCommand struct {
	TS          float64  `json:"ts"`
	Username    string   `json:"username"`
	SectionID   string   `json:"section_id"`
	SectionName string   `json:"section_name"`
	DPIDs       []string `json:"dp_id"`
}

// TrailThroughPlayback is the section_id document of a trail-through
// playback row.
type TrailThroughPlayback struct {
	TS            float64 `json:"ts"`
	SectionID     string  `json:"section_id"`
	ConfirmStatus bool    `json:"confirm_status"`
}
