package content

// NormalizedReport turns a free-text field report into incident fields.
type NormalizedReport struct {
	Species         string  `json:"species" validate:"required"`
	Severity        string  `json:"severity" validate:"required,oneof=none low high critical"`
	Behavior        string  `json:"behavior"`
	RequiresCapture bool    `json:"requires_capture"`
	Confidence      float64 `json:"confidence" validate:"gte=0,lte=1"`
}

func (NormalizedReport) Kind() Kind { return KindReportNormalize }

// DispatchReasoning explains a dispatch decision.
type DispatchReasoning struct {
	Summary string   `json:"summary" validate:"required"`
	Factors []string `json:"factors" validate:"dive,required"`
}

func (DispatchReasoning) Kind() Kind { return KindDispatchReasoning }

// Triage is the assessment stage output.
type Triage struct {
	Priority           int      `json:"priority" validate:"min=1,max=5"`
	RequiredResources  []string `json:"required_resources" validate:"min=1,dive,required"`
	AccessDifficulty   string   `json:"access_difficulty" validate:"omitempty,oneof=low medium high"`
	RecommendedActions []string `json:"recommended_actions" validate:"min=1,dive,required"`
}

func (Triage) Kind() Kind { return KindTriage }

// Treatment is the veterinary stage output.
type Treatment struct {
	Decision        string `json:"decision" validate:"required,oneof=accept decline refer"`
	Reason          string `json:"reason" validate:"required"`
	ExpectedMinutes int    `json:"expected_treatment_minutes" validate:"gte=0"`
}

func (Treatment) Kind() Kind { return KindTreatment }

// Notification is the public communication stage output.
type Notification struct {
	MessageText string   `json:"message_text" validate:"required,max=1000"`
	Channels    []string `json:"channels" validate:"min=1,dive,oneof=sms radio email web"`
	Explanation string   `json:"explanation"`
}

func (Notification) Kind() Kind { return KindNotification }
