package dataset

// FeatureNames lists the model input features in column order. The order is
// part of every artifact contract: scaler parameters, model weights, and API
// requests all follow it.
var FeatureNames = []string{
	"age",
	"income",
	"loan_amount",
	"credit_history_length",
	"num_open_accounts",
	"debt_to_income",
	"num_late_payments",
	"employment_length",
	"num_credit_inquiries",
	"credit_utilization",
}

// TargetName is the label column in training data.
const TargetName = "default"

// NumFeatures is the model input width.
const NumFeatures = 10

// Range bounds an acceptable raw feature value.
type Range struct {
	Min float64
	Max float64
}

// ValidationRanges holds the per-feature bounds enforced on prediction inputs.
var ValidationRanges = map[string]Range{
	"age":                   {Min: 18, Max: 100},
	"income":                {Min: 0, Max: 1e9},
	"loan_amount":           {Min: 0, Max: 1e9},
	"credit_history_length": {Min: 0, Max: 50},
	"num_open_accounts":     {Min: 0, Max: 50},
	"debt_to_income":        {Min: 0, Max: 1},
	"num_late_payments":     {Min: 0, Max: 100},
	"employment_length":     {Min: 0, Max: 50},
	"num_credit_inquiries":  {Min: 0, Max: 50},
	"credit_utilization":    {Min: 0, Max: 1},
}
