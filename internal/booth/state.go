// Package booth sequences the kiosk screens. Transition is a pure function
// over State; Controller performs the effects it returns.
package booth

import (
	"fmt"

	"photobooth-kiosk/internal/models"
)

type Step string

const (
	StepIdle     Step = "idle"
	StepPackage  Step = "package"
	StepPayment  Step = "payment"
	StepNonCash  Step = "noncash"
	StepTemplate Step = "template"
	StepQuantity Step = "quantity"
	StepQRIS     Step = "qris"
	StepSession  Step = "session"
	StepFilter   Step = "filter"
	StepDelivery Step = "delivery"
	StepFinish   Step = "finish"
)

// State is everything the transition function needs. It holds no handles.
type State struct {
	Step             Step
	Pricing          models.Pricing
	OfferPackages    bool
	Package          models.PackageType
	PaymentMethod    string
	PaymentCash      bool
	TemplateID       string
	Quantity         int
	Total            int64
	PaymentStatus    models.PaymentStatus
	CapturesComplete bool
	Filter           string
	// Finalizing is set while the composite is being uploaded. Only the
	// upload outcome, Reset and Timeout are accepted meanwhile.
	Finalizing bool
}

// Initial is the idle state shown between customers.
func Initial() State {
	return State{Step: StepIdle, Pricing: models.DefaultPricing()}
}

type Action interface {
	Name() string
}

type (
	// Start leaves the attract screen with the pricing in force for this
	// customer.
	Start struct {
		Pricing models.Pricing
	}
	SelectPackage struct {
		Package models.PackageType
	}
	SelectPaymentMethod struct {
		Method models.PaymentMethod
	}
	SelectTemplate struct {
		TemplateID string
	}
	SelectQuantity struct {
		Quantity int
	}
	ConfirmPayment struct{}
	CancelPayment  struct{}
	StartCapture   struct{}
	// CapturesComplete is raised by the capture run once every slot has a
	// still.
	CapturesComplete struct{}
	Retake           struct {
		Index int
	}
	RetakeAll    struct{}
	SelectFilter struct {
		FilterID string
	}
	Finalize struct{}
	// FinalReady and FinalFailed report the outcome of the final upload
	// started by Finalize.
	FinalReady  struct{}
	FinalFailed struct{}
	SendEmail   struct {
		Address string
	}
	Print  struct{}
	Finish struct{}
	Back   struct{}
	Reset  struct {
		Reason string
	}
	Timeout struct {
		Timer string
	}
)

func (Start) Name() string               { return "start" }
func (SelectPackage) Name() string       { return "select_package" }
func (SelectPaymentMethod) Name() string { return "select_payment_method" }
func (SelectTemplate) Name() string      { return "select_template" }
func (SelectQuantity) Name() string      { return "select_quantity" }
func (ConfirmPayment) Name() string      { return "confirm_payment" }
func (CancelPayment) Name() string       { return "cancel_payment" }
func (StartCapture) Name() string        { return "start_capture" }
func (CapturesComplete) Name() string    { return "captures_complete" }
func (Retake) Name() string              { return "retake" }
func (RetakeAll) Name() string           { return "retake_all" }
func (SelectFilter) Name() string        { return "select_filter" }
func (Finalize) Name() string            { return "finalize" }
func (FinalReady) Name() string          { return "final_ready" }
func (FinalFailed) Name() string         { return "final_failed" }
func (SendEmail) Name() string           { return "send_email" }
func (Print) Name() string               { return "print" }
func (Finish) Name() string              { return "finish" }
func (Back) Name() string                { return "back" }
func (Reset) Name() string               { return "reset" }
func (Timeout) Name() string             { return "timeout" }

type EffectKind string

const (
	EffectAcquireCamera      EffectKind = "acquire_camera"
	EffectReleaseCamera      EffectKind = "release_camera"
	EffectStartSessionTimer  EffectKind = "start_session_timer"
	EffectStartFinishTimer   EffectKind = "start_finish_timer"
	EffectStopTimers         EffectKind = "stop_timers"
	EffectCancelCapture      EffectKind = "cancel_capture"
	EffectResetCaptures      EffectKind = "reset_captures"
	EffectResetAssets        EffectKind = "reset_assets"
	EffectLoadTemplate       EffectKind = "load_template"
	EffectPersistTransaction EffectKind = "persist_transaction"
	EffectMarkPaid           EffectKind = "mark_paid"
	EffectMarkCanceled       EffectKind = "mark_canceled"
	EffectRunCapture         EffectKind = "run_capture"
	EffectRunRetake          EffectKind = "run_retake"
	EffectUploadFinal        EffectKind = "upload_final"
	EffectStartAssetJobs     EffectKind = "start_asset_jobs"
	EffectSendEmail          EffectKind = "send_email"
	EffectPrint              EffectKind = "print"
	EffectResetSession       EffectKind = "reset_session"
)

type Effect struct {
	Kind  EffectKind
	Index int
	Value string
}

func fx(kind EffectKind) Effect { return Effect{Kind: kind} }

// Critical effects abort the action when they fail; the previous state is
// kept.
func (e Effect) Critical() bool {
	switch e.Kind {
	case EffectLoadTemplate, EffectPersistTransaction, EffectMarkPaid, EffectUploadFinal:
		return true
	}
	return false
}

func invalid(s State, a Action) error {
	return fmt.Errorf("%w: %s in step %s", models.ErrInvalidAction, a.Name(), s.Step)
}

// resetEffects tears a session down in an order that never leaves the
// camera or a timer behind.
var resetEffects = []Effect{
	fx(EffectStopTimers),
	fx(EffectCancelCapture),
	fx(EffectReleaseCamera),
	fx(EffectResetSession),
}

func enterSession() []Effect {
	return []Effect{fx(EffectStartSessionTimer), fx(EffectAcquireCamera)}
}

// Transition computes the next state and the effects to perform. It never
// mutates its input and has no side effects.
func Transition(s State, a Action) (State, []Effect, error) {
	switch a.(type) {
	case Reset:
		return Initial(), resetEffects, nil
	case Timeout:
		if s.Step == StepIdle {
			return s, nil, nil
		}
		return Initial(), resetEffects, nil
	}

	next := s
	switch s.Step {
	case StepIdle:
		start, ok := a.(Start)
		if !ok {
			return s, nil, invalid(s, a)
		}
		next = Initial()
		next.Pricing = start.Pricing
		enabled := start.Pricing.EnabledPackages()
		next.OfferPackages = len(enabled) > 1
		if next.OfferPackages {
			next.Step = StepPackage
			return next, nil, nil
		}
		if len(enabled) == 1 {
			next.Package = enabled[0]
		}
		next.Step = StepPayment
		return next, nil, nil

	case StepPackage:
		switch a := a.(type) {
		case SelectPackage:
			if !packageEnabled(s.Pricing, a.Package) {
				return s, nil, models.NewValidationError("package", fmt.Sprintf("package %q is not available", a.Package))
			}
			next.Package = a.Package
			next.Step = StepPayment
			return next, nil, nil
		case Back:
			return Initial(), nil, nil
		}

	case StepPayment:
		switch a := a.(type) {
		case SelectPaymentMethod:
			next.PaymentMethod = a.Method.Name
			next.PaymentCash = a.Method.IsCash()
			if next.PaymentCash {
				next.Step = StepTemplate
			} else {
				next.Step = StepNonCash
			}
			return next, nil, nil
		case Back:
			if s.OfferPackages {
				next.Step = StepPackage
				next.Package = ""
				return next, nil, nil
			}
			return Initial(), nil, nil
		}

	case StepNonCash:
		switch a := a.(type) {
		case SelectPaymentMethod:
			if a.Method.IsCash() {
				return s, nil, models.NewValidationError("payment_method", "choose a non-cash method")
			}
			next.PaymentMethod = a.Method.Name
			next.PaymentCash = false
			next.Step = StepTemplate
			return next, nil, nil
		case Back:
			next.PaymentMethod = ""
			next.Step = StepPayment
			return next, nil, nil
		}

	case StepTemplate:
		switch a := a.(type) {
		case SelectTemplate:
			if a.TemplateID == "" {
				return s, nil, models.NewValidationError("template_id", "template is required")
			}
			next.TemplateID = a.TemplateID
			next.Step = StepQuantity
			return next, []Effect{{Kind: EffectLoadTemplate, Value: a.TemplateID}}, nil
		case Back:
			next.PaymentMethod = ""
			next.PaymentCash = false
			next.Step = StepPayment
			return next, nil, nil
		}

	case StepQuantity:
		switch a := a.(type) {
		case SelectQuantity:
			if a.Quantity < 1 || a.Quantity > models.MaxQuantity {
				return s, nil, models.NewValidationError("quantity", fmt.Sprintf("quantity must be between 1 and %d", models.MaxQuantity))
			}
			next.Quantity = a.Quantity
			next.Total = s.Pricing.Total(s.Package, a.Quantity)
			next.PaymentStatus = models.PaymentPending
			if s.PaymentCash {
				next.PaymentStatus = models.PaymentPaid
				next.Step = StepSession
				return next, append([]Effect{fx(EffectPersistTransaction), fx(EffectMarkPaid)}, enterSession()...), nil
			}
			next.Step = StepQRIS
			return next, []Effect{fx(EffectPersistTransaction)}, nil
		case Back:
			next.TemplateID = ""
			next.Step = StepTemplate
			return next, nil, nil
		}

	case StepQRIS:
		switch a.(type) {
		case ConfirmPayment:
			next.PaymentStatus = models.PaymentPaid
			next.Step = StepSession
			return next, append([]Effect{fx(EffectMarkPaid)}, enterSession()...), nil
		case CancelPayment:
			return Initial(), append([]Effect{fx(EffectMarkCanceled)}, resetEffects...), nil
		case Back:
			next.PaymentStatus = ""
			next.Total = 0
			next.Step = StepQuantity
			return next, []Effect{fx(EffectMarkCanceled)}, nil
		}

	case StepSession:
		switch a := a.(type) {
		case StartCapture:
			return next, []Effect{fx(EffectAcquireCamera), fx(EffectRunCapture)}, nil
		case CapturesComplete:
			next.CapturesComplete = true
			next.Step = StepFilter
			return next, []Effect{fx(EffectReleaseCamera)}, nil
		case Retake:
			next.CapturesComplete = false
			return next, []Effect{fx(EffectAcquireCamera), {Kind: EffectRunRetake, Index: a.Index}}, nil
		case RetakeAll:
			next.CapturesComplete = false
			return next, []Effect{fx(EffectCancelCapture), fx(EffectResetCaptures), fx(EffectResetAssets), fx(EffectAcquireCamera), fx(EffectRunCapture)}, nil
		}

	case StepFilter:
		if s.Finalizing {
			switch a.(type) {
			case FinalReady:
				next.Finalizing = false
				next.Step = StepDelivery
				return next, []Effect{fx(EffectStartAssetJobs)}, nil
			case FinalFailed:
				next.Finalizing = false
				return next, nil, nil
			}
			return s, nil, fmt.Errorf("%w: %s while the final image uploads", models.ErrInvalidAction, a.Name())
		}
		switch a := a.(type) {
		case SelectFilter:
			next.Filter = a.FilterID
			return next, nil, nil
		case Retake:
			next.CapturesComplete = false
			next.Step = StepSession
			return next, []Effect{fx(EffectAcquireCamera), {Kind: EffectRunRetake, Index: a.Index}}, nil
		case RetakeAll:
			next.CapturesComplete = false
			next.Step = StepSession
			return next, []Effect{fx(EffectResetCaptures), fx(EffectResetAssets), fx(EffectAcquireCamera), fx(EffectRunCapture)}, nil
		case Back:
			next.Step = StepSession
			return next, []Effect{fx(EffectAcquireCamera)}, nil
		case Finalize:
			if !s.CapturesComplete {
				return s, nil, fmt.Errorf("%w: captures are not complete", models.ErrInvalidAction)
			}
			next.Finalizing = true
			return next, []Effect{fx(EffectUploadFinal)}, nil
		}

	case StepDelivery:
		switch a := a.(type) {
		case SendEmail:
			return next, []Effect{{Kind: EffectSendEmail, Value: a.Address}}, nil
		case Print:
			return next, []Effect{fx(EffectPrint)}, nil
		case Finalize:
			// Re-entering delivery only restarts jobs that have not run.
			return next, []Effect{fx(EffectStartAssetJobs)}, nil
		case Finish:
			next.Step = StepFinish
			return next, []Effect{fx(EffectStopTimers), fx(EffectStartFinishTimer)}, nil
		}

	case StepFinish:
		if _, ok := a.(Finish); ok {
			return Initial(), resetEffects, nil
		}
	}

	return s, nil, invalid(s, a)
}

func packageEnabled(p models.Pricing, pkg models.PackageType) bool {
	for _, enabled := range p.EnabledPackages() {
		if enabled == pkg {
			return true
		}
	}
	return false
}
