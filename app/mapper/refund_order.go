package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-paylink/app/entity"
	"github.com/vibast-solutions/ms-go-paylink/app/types"
)

func RefundOrderToDTO(item *entity.RefundOrder) *types.RefundOrder {
	if item == nil {
		return nil
	}

	return &types.RefundOrder{
		Id:           item.ID,
		Numb:         item.Numb,
		PaymentId:    item.PaymentID,
		NotifyUrl:    item.NotifyURL,
		ReturnUrl:    item.ReturnURL,
		Reason:       item.Reason,
		Status:       int32(item.Status),
		Note:         item.Note,
		PayerName:    item.PayerName,
		PayerEdrpou:  item.PayerEDRPOU,
		PayerPhone:   item.PayerPhone,
		PayerEmail:   item.PayerEmail,
		PaymentDate:  item.PaymentDate,
		CaseNumb:     item.CaseNumb,
		CourtCode:    item.CourtCode,
		Amount:       item.Amount.StringFixed(2),
		AmountAndFee: item.AmountAndFee.StringFixed(2),
		IsNotified:   item.IsPayerNotified,
		CreatedAt:    item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
