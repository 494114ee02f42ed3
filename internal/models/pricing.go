package models

type PackageType string

const (
	Package2D PackageType = "2d"
	Package4R PackageType = "4r"
)

func (p PackageType) Valid() bool {
	return p == Package2D || p == Package4R
}

const (
	DefaultBasePrice         int64 = 20000
	DefaultPerPrintPrice     int64 = 5000
	DefaultSessionCountdown        = 300
	MaxQuantity                    = 3
	PaymentMethodCash              = "Tunai"
	PaymentMethodTypeCash          = "cash"
	PaymentMethodTypeNonCash       = "non_cash"
)

type Pricing struct {
	BasePrice               int64 `json:"base_price"`
	PerPrintPrice           int64 `json:"per_print_price"`
	Price2D                 int64 `json:"price_2d"`
	Price4R                 int64 `json:"price_4r"`
	PerPrintPrice2D         int64 `json:"per_print_price_2d"`
	PerPrintPrice4R         int64 `json:"per_print_price_4r"`
	Is2DEnabled             bool  `json:"is_2d_enabled"`
	Is4REnabled             bool  `json:"is_4r_enabled"`
	SessionCountdownSeconds int   `json:"session_countdown"`
}

func DefaultPricing() Pricing {
	return Pricing{
		BasePrice:               DefaultBasePrice,
		PerPrintPrice:           DefaultPerPrintPrice,
		Price2D:                 DefaultBasePrice,
		Price4R:                 DefaultBasePrice,
		PerPrintPrice2D:         DefaultPerPrintPrice,
		PerPrintPrice4R:         DefaultPerPrintPrice,
		Is2DEnabled:             true,
		Is4REnabled:             true,
		SessionCountdownSeconds: DefaultSessionCountdown,
	}
}

// Total returns base + quantity * per-print for the package. An empty or
// unknown package uses the generic prices.
func (p Pricing) Total(pkg PackageType, quantity int) int64 {
	base, perPrint := p.BasePrice, p.PerPrintPrice
	switch pkg {
	case Package2D:
		if p.Price2D > 0 {
			base = p.Price2D
		}
		if p.PerPrintPrice2D > 0 {
			perPrint = p.PerPrintPrice2D
		}
	case Package4R:
		if p.Price4R > 0 {
			base = p.Price4R
		}
		if p.PerPrintPrice4R > 0 {
			perPrint = p.PerPrintPrice4R
		}
	}
	return base + int64(quantity)*perPrint
}

// EnabledPackages lists the packages the kiosk should offer.
func (p Pricing) EnabledPackages() []PackageType {
	var out []PackageType
	if p.Is2DEnabled {
		out = append(out, Package2D)
	}
	if p.Is4REnabled {
		out = append(out, Package4R)
	}
	return out
}

type PaymentMethod struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsActive bool   `json:"is_active"`
}

func (m PaymentMethod) IsCash() bool {
	return m.Type == PaymentMethodTypeCash || m.Name == PaymentMethodCash
}

func DefaultPaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		{ID: "tunai", Name: PaymentMethodCash, Type: PaymentMethodTypeCash, IsActive: true},
		{ID: "qris", Name: "QRIS", Type: PaymentMethodTypeNonCash, IsActive: true},
		{ID: "gopay", Name: "GoPay", Type: PaymentMethodTypeNonCash, IsActive: true},
		{ID: "ovo", Name: "OVO", Type: PaymentMethodTypeNonCash, IsActive: true},
	}
}
