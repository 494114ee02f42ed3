package booth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photobooth-kiosk/internal/booth"
	"photobooth-kiosk/internal/models"
)

var (
	cash = models.PaymentMethod{ID: "tunai", Name: models.PaymentMethodCash, Type: models.PaymentMethodTypeCash, IsActive: true}
	qris = models.PaymentMethod{ID: "qris", Name: "QRIS", Type: models.PaymentMethodTypeNonCash, IsActive: true}
)

func kinds(effects []booth.Effect) []booth.EffectKind {
	out := make([]booth.EffectKind, len(effects))
	for i, e := range effects {
		out[i] = e.Kind
	}
	return out
}

// walk applies actions in order and fails on the first rejection.
func walk(t *testing.T, s booth.State, actions ...booth.Action) booth.State {
	t.Helper()
	for _, a := range actions {
		var err error
		s, _, err = booth.Transition(s, a)
		require.NoError(t, err, a.Name())
	}
	return s
}

func TestTransition_StartOffersPackagesWhenBothEnabled(t *testing.T) {
	s, effects, err := booth.Transition(booth.Initial(), booth.Start{Pricing: models.DefaultPricing()})

	require.NoError(t, err)
	assert.Empty(t, effects)
	assert.Equal(t, booth.StepPackage, s.Step)
	assert.True(t, s.OfferPackages)
}

func TestTransition_StartSkipsPackageStep(t *testing.T) {
	pricing := models.DefaultPricing()
	pricing.Is2DEnabled = false

	s, _, err := booth.Transition(booth.Initial(), booth.Start{Pricing: pricing})

	require.NoError(t, err)
	assert.Equal(t, booth.StepPayment, s.Step)
	assert.Equal(t, models.Package4R, s.Package)

	back, _, err := booth.Transition(s, booth.Back{})
	require.NoError(t, err)
	assert.Equal(t, booth.StepIdle, back.Step)
}

func TestTransition_RejectsDisabledPackage(t *testing.T) {
	pricing := models.DefaultPricing()
	s := walk(t, booth.Initial(), booth.Start{Pricing: pricing})
	s.Pricing.Is2DEnabled = false

	_, _, err := booth.Transition(s, booth.SelectPackage{Package: models.Package2D})

	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestTransition_CashFlow(t *testing.T) {
	s := walk(t, booth.Initial(),
		booth.Start{Pricing: models.DefaultPricing()},
		booth.SelectPackage{Package: models.Package4R},
		booth.SelectPaymentMethod{Method: cash},
	)
	assert.Equal(t, booth.StepTemplate, s.Step)
	assert.True(t, s.PaymentCash)

	s, effects, err := booth.Transition(s, booth.SelectTemplate{TemplateID: "tpl-1"})
	require.NoError(t, err)
	assert.Equal(t, booth.StepQuantity, s.Step)
	require.Len(t, effects, 1)
	assert.Equal(t, booth.EffectLoadTemplate, effects[0].Kind)
	assert.Equal(t, "tpl-1", effects[0].Value)

	s, effects, err = booth.Transition(s, booth.SelectQuantity{Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, booth.StepSession, s.Step)
	assert.Equal(t, int64(30000), s.Total)
	assert.Equal(t, models.PaymentPaid, s.PaymentStatus)
	assert.Equal(t, []booth.EffectKind{
		booth.EffectPersistTransaction,
		booth.EffectMarkPaid,
		booth.EffectStartSessionTimer,
		booth.EffectAcquireCamera,
	}, kinds(effects))
}

func TestTransition_NonCashWaitsForConfirmation(t *testing.T) {
	s := walk(t, booth.Initial(),
		booth.Start{Pricing: models.DefaultPricing()},
		booth.SelectPackage{Package: models.Package2D},
		booth.SelectPaymentMethod{Method: qris},
	)
	assert.Equal(t, booth.StepNonCash, s.Step)

	_, _, err := booth.Transition(s, booth.SelectPaymentMethod{Method: cash})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	s = walk(t, s,
		booth.SelectPaymentMethod{Method: qris},
		booth.SelectTemplate{TemplateID: "tpl-1"},
	)
	s, effects, err := booth.Transition(s, booth.SelectQuantity{Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, booth.StepQRIS, s.Step)
	assert.Equal(t, models.PaymentPending, s.PaymentStatus)
	assert.Equal(t, []booth.EffectKind{booth.EffectPersistTransaction}, kinds(effects))

	_, _, err = booth.Transition(s, booth.StartCapture{})
	assert.ErrorIs(t, err, models.ErrInvalidAction)

	paid, effects, err := booth.Transition(s, booth.ConfirmPayment{})
	require.NoError(t, err)
	assert.Equal(t, booth.StepSession, paid.Step)
	assert.Equal(t, models.PaymentPaid, paid.PaymentStatus)
	assert.Equal(t, booth.EffectMarkPaid, effects[0].Kind)

	back, effects, err := booth.Transition(s, booth.Back{})
	require.NoError(t, err)
	assert.Equal(t, booth.StepQuantity, back.Step)
	assert.Equal(t, []booth.EffectKind{booth.EffectMarkCanceled}, kinds(effects))
}

func TestTransition_QuantityBounds(t *testing.T) {
	s := walk(t, booth.Initial(),
		booth.Start{Pricing: models.DefaultPricing()},
		booth.SelectPackage{Package: models.Package4R},
		booth.SelectPaymentMethod{Method: cash},
		booth.SelectTemplate{TemplateID: "tpl-1"},
	)

	for _, q := range []int{0, -1, models.MaxQuantity + 1} {
		_, _, err := booth.Transition(s, booth.SelectQuantity{Quantity: q})
		assert.ErrorIs(t, err, models.ErrInvalidInput, "quantity %d", q)
	}
}

func TestTransition_CaptureToDelivery(t *testing.T) {
	s := booth.State{Step: booth.StepSession, PaymentStatus: models.PaymentPaid}

	_, _, err := booth.Transition(s, booth.Back{})
	assert.ErrorIs(t, err, models.ErrInvalidAction)

	s, effects, err := booth.Transition(s, booth.CapturesComplete{})
	require.NoError(t, err)
	assert.Equal(t, booth.StepFilter, s.Step)
	assert.Equal(t, []booth.EffectKind{booth.EffectReleaseCamera}, kinds(effects))

	s = walk(t, s, booth.SelectFilter{FilterID: "sepia"})
	assert.Equal(t, "sepia", s.Filter)

	s, effects, err = booth.Transition(s, booth.Finalize{})
	require.NoError(t, err)
	assert.Equal(t, booth.StepFilter, s.Step)
	assert.True(t, s.Finalizing)
	assert.Equal(t, []booth.EffectKind{booth.EffectUploadFinal}, kinds(effects))
	assert.True(t, effects[0].Critical())

	s, effects, err = booth.Transition(s, booth.FinalReady{})
	require.NoError(t, err)
	assert.Equal(t, booth.StepDelivery, s.Step)
	assert.False(t, s.Finalizing)
	assert.Equal(t, []booth.EffectKind{booth.EffectStartAssetJobs}, kinds(effects))

	s, effects, err = booth.Transition(s, booth.Finish{})
	require.NoError(t, err)
	assert.Equal(t, booth.StepFinish, s.Step)
	assert.Equal(t, []booth.EffectKind{booth.EffectStopTimers, booth.EffectStartFinishTimer}, kinds(effects))
}

func TestTransition_FinalizeNeedsCompleteCaptures(t *testing.T) {
	s := booth.State{Step: booth.StepFilter}

	_, _, err := booth.Transition(s, booth.Finalize{})

	assert.ErrorIs(t, err, models.ErrInvalidAction)
}

func TestTransition_FinalizingBlocksFilterActions(t *testing.T) {
	s := booth.State{Step: booth.StepFilter, CapturesComplete: true, Finalizing: true}

	for _, a := range []booth.Action{
		booth.Finalize{}, booth.SelectFilter{FilterID: "bw"}, booth.Retake{Index: 0},
		booth.RetakeAll{}, booth.Back{},
	} {
		next, effects, err := booth.Transition(s, a)
		assert.ErrorIs(t, err, models.ErrInvalidAction, a.Name())
		assert.Equal(t, s, next)
		assert.Nil(t, effects)
	}

	next, effects, err := booth.Transition(s, booth.Reset{Reason: "operator"})
	require.NoError(t, err)
	assert.Equal(t, booth.Initial(), next)
	assert.Equal(t, booth.EffectResetSession, effects[len(effects)-1].Kind)
}

func TestTransition_FinalFailedStaysInFilter(t *testing.T) {
	s := booth.State{Step: booth.StepFilter, CapturesComplete: true, Finalizing: true, Filter: "sepia"}

	next, effects, err := booth.Transition(s, booth.FinalFailed{})

	require.NoError(t, err)
	assert.Equal(t, booth.StepFilter, next.Step)
	assert.False(t, next.Finalizing)
	assert.Equal(t, "sepia", next.Filter)
	assert.Empty(t, effects)

	// Without an upload in flight the outcome actions are rejected.
	_, _, err = booth.Transition(next, booth.FinalReady{})
	assert.ErrorIs(t, err, models.ErrInvalidAction)
}

func TestTransition_RetakeFromFilterReturnsToSession(t *testing.T) {
	s := booth.State{Step: booth.StepFilter, CapturesComplete: true}

	next, effects, err := booth.Transition(s, booth.Retake{Index: 1})

	require.NoError(t, err)
	assert.Equal(t, booth.StepSession, next.Step)
	assert.False(t, next.CapturesComplete)
	require.Len(t, effects, 2)
	assert.Equal(t, booth.EffectRunRetake, effects[1].Kind)
	assert.Equal(t, 1, effects[1].Index)

	next, effects, err = booth.Transition(s, booth.RetakeAll{})
	require.NoError(t, err)
	assert.Equal(t, booth.StepSession, next.Step)
	assert.Contains(t, kinds(effects), booth.EffectResetCaptures)
	assert.Contains(t, kinds(effects), booth.EffectResetAssets)
}

func TestTransition_ResetFromAnyStep(t *testing.T) {
	steps := []booth.Step{
		booth.StepPackage, booth.StepPayment, booth.StepNonCash, booth.StepTemplate,
		booth.StepQuantity, booth.StepQRIS, booth.StepSession, booth.StepFilter,
		booth.StepDelivery, booth.StepFinish,
	}
	for _, step := range steps {
		t.Run(string(step), func(t *testing.T) {
			s := booth.State{Step: step, Quantity: 2, TemplateID: "tpl", Total: 30000}

			next, effects, err := booth.Transition(s, booth.Timeout{Timer: "session"})

			require.NoError(t, err)
			assert.Equal(t, booth.Initial(), next)
			assert.Equal(t, booth.EffectResetSession, effects[len(effects)-1].Kind)
		})
	}
}

func TestTransition_TimeoutInIdleIsIgnored(t *testing.T) {
	next, effects, err := booth.Transition(booth.Initial(), booth.Timeout{Timer: "finish"})

	require.NoError(t, err)
	assert.Equal(t, booth.StepIdle, next.Step)
	assert.Empty(t, effects)
}

func TestTransition_InvalidActionKeepsState(t *testing.T) {
	s := booth.State{Step: booth.StepTemplate, PaymentMethod: "QRIS"}

	next, effects, err := booth.Transition(s, booth.ConfirmPayment{})

	assert.ErrorIs(t, err, models.ErrInvalidAction)
	assert.Equal(t, s, next)
	assert.Nil(t, effects)
}
