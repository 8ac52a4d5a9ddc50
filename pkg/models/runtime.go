package models

// ModelStatus describes one configured model after the one-time load.
type ModelStatus struct {
	Name      string   `json:"name"`
	Backend   string   `json:"backend"`
	Location  string   `json:"location"`
	Loaded    bool     `json:"loaded"`
	Classes   []string `json:"classes,omitempty"`
	InputSize int      `json:"input_size,omitempty"`
	Weight    float64  `json:"weight"`
	Providers []string `json:"providers,omitempty"`
	LoadError string   `json:"load_error,omitempty"`
}

// RuntimeStatus is the process-wide view of the model registry.
type RuntimeStatus struct {
	Initialized bool          `json:"initialized"`
	Loaded      int           `json:"loaded"`
	Configured  int           `json:"configured"`
	Providers   []string      `json:"providers"`
	Models      []ModelStatus `json:"models"`
}

// ModelContribution records what a single model said about one image.
type ModelContribution struct {
	Name          string             `json:"name"`
	Weight        float64            `json:"weight"`
	Runs          int                `json:"runs"`
	Probabilities ClassProbabilities `json:"probabilities"`
}
