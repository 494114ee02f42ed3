package models

type HealthResponse struct {
	Status string `json:"status"`
	Camera string `json:"camera,omitempty"`
	Store  string `json:"store,omitempty"`
}

type TemplateListResponse struct {
	Templates []Template `json:"templates"`
}

type PaymentMethodListResponse struct {
	Methods []PaymentMethod `json:"methods"`
}

type PrinterListResponse struct {
	Printers []string `json:"printers"`
}

// PrinterConfigResponse mirrors printer-settings.json. PrinterName is null
// when no printer has been chosen.
type PrinterConfigResponse struct {
	PrinterName *string `json:"printerName"`
}

type TemplateUploadResponse struct {
	Template Template `json:"template"`
}
