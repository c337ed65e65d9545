package model

// ReviewFeedback is the evaluation shown after a review submission.
type ReviewFeedback struct {
	Grade        string   `json:"grade"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	ProTip       string   `json:"proTip"`
}

// WellFormed reports whether every field a presenter relies on is set.
func (f *ReviewFeedback) WellFormed() bool {
	return f != nil && f.Grade != "" && f.ProTip != "" &&
		f.Strengths != nil && f.Improvements != nil
}
