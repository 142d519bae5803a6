package mapper

import (
	"encoding/json"
	"time"

	"github.com/vibast-solutions/ms-go-paylink/app/entity"
	"github.com/vibast-solutions/ms-go-paylink/app/types"
	"google.golang.org/protobuf/types/known/structpb"
)

func PaymentToDTO(item *entity.Payment) *types.Payment {
	if item == nil {
		return nil
	}

	dto := &types.Payment{
		Id:            item.ID,
		OrderId:       item.OrderID,
		Sid:           item.SID,
		TransactionId: item.TransactionID,
		Currency:      item.Currency,
		Amount:        item.Amount.StringFixed(2),
		Recipient: types.Recipient{
			Iban:     item.Recipient.IBAN,
			Name:     item.Recipient.Name,
			Edrpou:   item.Recipient.EDRPOU,
			Mfo:      item.Recipient.MFO,
			BankName: item.Recipient.BankName,
		},
		Description:    item.Description,
		NotifyUrl:      item.NotifyURL,
		StartedPay:     item.StartedPay,
		DetailsChanged: item.DetailsChanged,
		Flow:           string(item.Flow()),
		Gateway: types.GatewayStatus{
			Code:         item.Status,
			Message:      item.StatusMessage,
			ProcessingId: item.ProcessingID,
			Pan:          item.PAN,
			FinishDate:   formatTime(item.FinishDate),
			IsExpired:    item.IsExpired,
			IsFailed:     item.IsFailed,
			IsFinished:   item.IsFinished,
		},
		Settlement: types.SettlementStatus{
			Status:       item.AbsStatus,
			ActionId:     item.AbsActionID,
			ActionStatus: item.AbsActionStatus,
			ActionTime:   formatTime(item.AbsActionTime),
			FinishDate:   formatTime(item.FinishAbsDate),
			IsFailed:     item.IsAbsFailed,
			IsFinished:   item.IsAbsFinished,
		},
		Refund: types.RefundStatus{
			Status:        string(item.RefundStatus),
			StatusCode:    item.RefundStatusCode,
			StatusMessage: item.RefundStatusMessage,
		},
		Notification: types.NotificationStatus{
			IsNotified:  item.IsNotified,
			Attempts:    item.NotifyAttempts,
			RetryAt:     formatTime(item.NotifyRetryAt),
			Error:       item.NotifyError,
			AbandonedAt: formatTime(item.NotifyAbandonedAt),
		},
		AbandonedAt: formatTime(item.StatusUpdateAbandonedAt),
		CreatedAt:   item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   item.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if item.Fee.Valid {
		fee := item.Fee.Decimal.StringFixed(2)
		dto.Fee = &fee
	}
	if item.RefundAmount.Valid {
		amount := item.RefundAmount.Decimal.StringFixed(2)
		dto.Refund.Amount = &amount
	}
	return dto
}

// PaymentToStruct renders the payment DTO as a protobuf Struct, using the same field names as JSON.
func PaymentToStruct(item *entity.Payment) (*structpb.Struct, error) {
	return toStruct(PaymentToDTO(item))
}

func TriggerToStruct(result string, item *entity.Payment) (*structpb.Struct, error) {
	return toStruct(&types.TriggerPaymentResponse{Result: result, Payment: PaymentToDTO(item)})
}

func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return structpb.NewStruct(fields)
}

func formatTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}
