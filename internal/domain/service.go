package domain

// Check strategies. The set is closed: adding a strategy means adding a
// constant here and a prober for it.
const (
	CheckTypeHTTP = "http"
	CheckTypeAPI  = "api"
)

// Service is one monitored endpoint as declared in the configuration.
// Name is the unique key everything else hangs off. Immutable after load.
type Service struct {
	Name           string `yaml:"name" json:"name"`
	URL            string `yaml:"url" json:"url"`
	Type           string `yaml:"type" json:"type"`                       // http|api
	Method         string `yaml:"method" json:"method"`                   // GET unless overridden
	ExpectedStatus int    `yaml:"expected_status" json:"expected_status"` // 0 means any 2xx/3xx
}
