package entity

// Gateway (PayLink) result codes stored in Payment.Status.
const (
	GatewaySuccess                 int32 = 100
	GatewayExternalDecline         int32 = 200
	GatewayIneligibleTransaction   int32 = 304
	GatewaySessionExpired          int32 = 316
	GatewayRequired3DSVerify       int32 = 400
	GatewayRequiredLookupVerify    int32 = 401
	GatewayTransactionIsProcessing int32 = 406
)

// Codes reported to webhook receivers on top of the gateway codes.
const (
	NotifyStartedPay     int32 = 1000
	NotifyFinishedAbs    int32 = 1001
	NotifyStartedRefund  int32 = 1002
	NotifyFinishedRefund int32 = 1003
)

// SettlementSuccess is the processor's "ok" response code.
const SettlementSuccess int32 = 0

const (
	SettlementWaitIIT     = "CLB_WAIT_IIT"
	SettlementVacant      = "VACANT"
	SettlementVerified    = "VERIFIED"
	SettlementPosted      = "POSTED"
	SettlementPostControl = "POSTCONTROL"
	SettlementShipped     = "SHIPPED"
	SettlementConfirmed   = "CONFIRMED"
)

// GatewayPending reports whether code leaves the card session undecided. A missing code is pending.
func GatewayPending(code *int32) bool {
	if code == nil {
		return true
	}
	switch *code {
	case GatewayRequired3DSVerify, GatewayRequiredLookupVerify, GatewayTransactionIsProcessing:
		return true
	default:
		return false
	}
}

func GatewayFinished(code *int32) bool {
	return code != nil && *code == GatewaySuccess
}

// GatewayRecordsPAN reports whether a decline code should be kept against the card prefix.
func GatewayRecordsPAN(code *int32) bool {
	return code != nil && (*code == GatewayExternalDecline || *code == GatewayIneligibleTransaction)
}

func SettlementActionPending(status string) bool {
	return status == SettlementWaitIIT
}

func SettlementActionFinished(status string) bool {
	switch status {
	case SettlementVacant, SettlementVerified, SettlementPosted, SettlementPostControl, SettlementShipped, SettlementConfirmed:
		return true
	default:
		return false
	}
}
