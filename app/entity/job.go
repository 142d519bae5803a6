package entity

// JobKind selects which due set the store returns.
type JobKind string

const (
	JobGatewayStatus    JobKind = "gateway_status"
	JobSettlementStatus JobKind = "settlement_status"
	JobRefundStatus     JobKind = "refund_status"
	JobNotification     JobKind = "notification"
	JobPayerEmail       JobKind = "payer_email"
)

func (k JobKind) Valid() bool {
	switch k {
	case JobGatewayStatus, JobSettlementStatus, JobRefundStatus, JobNotification, JobPayerEmail:
		return true
	default:
		return false
	}
}
