package models

type SelectPackageRequest struct {
	Package PackageType `json:"package" binding:"required"`
}

type SelectPaymentMethodRequest struct {
	// Method is a payment method id or its display name.
	Method string `json:"method" binding:"required"`
}

type SelectTemplateRequest struct {
	TemplateID string `json:"template_id" binding:"required"`
}

type SelectQuantityRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

type SelectFilterRequest struct {
	FilterID string `json:"filter_id"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type ResetRequest struct {
	Reason string `json:"reason,omitempty"`
}

type PrinterConfigRequest struct {
	PrinterName string `json:"printerName"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
