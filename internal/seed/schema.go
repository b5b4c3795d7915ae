package seed

// File is the top-level structure of a seed file.
//
//	applications:
//	  - name: marketing
//	    baseUrl: https://marketing.example.com
//	mappings:
//	  - qrId: PROMO-SPRING24
//	    targetUrl: https://example.com/spring
//	    application: marketing
type File struct {
	Applications []ApplicationProps `yaml:"applications"`
	Mappings     []MappingProps     `yaml:"mappings"`
}

// ApplicationProps declares an owning application.
type ApplicationProps struct {
	Name         string `yaml:"name"`
	BaseURL      string `yaml:"baseUrl,omitempty"`
	Description  string `yaml:"description,omitempty"`
	ContactEmail string `yaml:"contactEmail,omitempty"`
	Active       *bool  `yaml:"active,omitempty"`
}

// MappingProps declares a mapping with a pre-assigned qrId.
type MappingProps struct {
	QrID        string `yaml:"qrId"`
	TargetURL   string `yaml:"targetUrl"`
	Description string `yaml:"description,omitempty"`
	Application string `yaml:"application,omitempty"` // application name
	CreatedBy   string `yaml:"createdBy,omitempty"`
	Active      *bool  `yaml:"active,omitempty"`
}
