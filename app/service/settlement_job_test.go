package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-paylink/app/entity"
	"github.com/vibast-solutions/ms-go-paylink/app/provider"
)

func finishedPayment(id string) *entity.Payment {
	p := pendingPayment(id)
	p.Status = entity.Ptr(entity.GatewaySuccess)
	p.IsFinished = true
	p.IsNotified = true
	p.NotifyURL = notifyURL()
	p.ProcessingID = entity.Ptr("987654")
	p.TransactionID = "tx-" + id
	p.Currency = "UAH"
	p.Amount = decimal.RequireFromString("150.00")
	p.Recipient = entity.Recipient{IBAN: "UA213223130000026007233566001", Name: "ТОВ Отримувач", EDRPOU: "12345678"}
	p.Description = "Оплата рахунку #1"
	return p
}

func TestSettlementCreateStoresAction(t *testing.T) {
	payments := newFakePayments(finishedPayment("p-1"))
	var sent *provider.ActionRequest
	settlement := &fakeSettlement{create: func(req *provider.ActionRequest) (*provider.ActionResult, error) {
		sent = req
		return &provider.ActionResult{Code: 0, Message: entity.Ptr("ok"), ActionID: entity.Ptr[int64](77)}, nil
	}}
	trigger := &recordingTrigger{}
	job := NewSettlementStatusJob(testDeps(payments, &fakeEvents{}, nil), testRetry(), settlement, trigger)

	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sent == nil || sent.ProcessingID != "987654" || sent.OKPO != "12345678" || !sent.Amount.Equal(decimal.RequireFromString("150")) {
		t.Fatalf("unexpected action request: %+v", sent)
	}
	got := payments.get("p-1")
	if got.AbsActionID == nil || *got.AbsActionID != 77 {
		t.Fatalf("expected action id 77, got %v", got.AbsActionID)
	}
	if got.IsAbsFinished || got.IsFailed || !got.IsFinished {
		t.Fatalf("expected settlement still open, got %+v", got)
	}
	if got.StatusUpdateAttempts != 1 || !got.StatusUpdateRetryAt.Equal(testNow.Add(30*time.Second)) {
		t.Fatalf("expected next check scheduled, got %d %v", got.StatusUpdateAttempts, got.StatusUpdateRetryAt)
	}
	if len(trigger.ids) != 0 {
		t.Fatalf("expected no notification, got %v", trigger.ids)
	}
}

func TestSettlementCreateRejectedFailsPayment(t *testing.T) {
	payments := newFakePayments(finishedPayment("p-1"))
	settlement := &fakeSettlement{create: func(*provider.ActionRequest) (*provider.ActionResult, error) {
		return &provider.ActionResult{Code: 14, Message: entity.Ptr("invalid iban")}, nil
	}}
	trigger := &recordingTrigger{}
	events := &fakeEvents{}
	job := NewSettlementStatusJob(testDeps(payments, events, nil), testRetry(), settlement, trigger)

	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := payments.get("p-1")
	if !got.IsFailed || got.IsFinished || !got.IsAbsFailed {
		t.Fatalf("expected failed settlement, got failed=%v finished=%v absFailed=%v", got.IsFailed, got.IsFinished, got.IsAbsFailed)
	}
	if got.AbsStatus == nil || *got.AbsStatus != 14 {
		t.Fatalf("expected abs status 14, got %v", got.AbsStatus)
	}
	if got.IsNotified {
		t.Fatal("expected notification re-armed")
	}
	if got.StatusUpdateAttempts != 0 {
		t.Fatalf("expected clock cleared on terminal outcome, got %d", got.StatusUpdateAttempts)
	}
	if len(trigger.ids) != 1 {
		t.Fatalf("expected notification requested, got %v", trigger.ids)
	}
	if types := events.types(); len(types) != 1 || types[0] != entity.EventSettlementFailed {
		t.Fatalf("unexpected events: %v", types)
	}
}

func TestSettlementCreateRemoteErrorKeepsCode(t *testing.T) {
	payments := newFakePayments(finishedPayment("p-1"))
	settlement := &fakeSettlement{create: func(*provider.ActionRequest) (*provider.ActionResult, error) {
		return nil, &provider.RemoteError{
			Method:     http.MethodPost,
			URL:        "https://abs.test/c2aTermPayment",
			StatusCode: http.StatusBadRequest,
			Status:     "400 Bad Request",
			Body:       `{"code":12}`,
			Code:       entity.Ptr[int32](12),
		}
	}}
	job := NewSettlementStatusJob(testDeps(payments, &fakeEvents{}, nil), testRetry(), settlement, nil)

	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := payments.get("p-1")
	if got.AbsStatus == nil || *got.AbsStatus != 12 {
		t.Fatalf("expected remote code stored, got %v", got.AbsStatus)
	}
	if got.StatusMessage == nil || *got.StatusMessage == "" {
		t.Fatal("expected error text stored")
	}
	if got.IsFailed || got.StatusUpdateAttempts != 1 {
		t.Fatalf("expected retry, got failed=%v attempts=%d", got.IsFailed, got.StatusUpdateAttempts)
	}
}

func TestSettlementStatusOutcomes(t *testing.T) {
	cases := []struct {
		name         string
		code         int32
		status       string
		wantFailed   bool
		wantSettled  bool
		wantTerminal bool
	}{
		{name: "posted", status: entity.SettlementPosted, wantSettled: true, wantTerminal: true},
		{name: "waiting", status: entity.SettlementWaitIIT},
		{name: "unknown status", status: "REJECTED", wantFailed: true, wantTerminal: true},
		{name: "error code", code: 3, status: entity.SettlementWaitIIT, wantFailed: true, wantTerminal: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := finishedPayment("p-1")
			p.AbsActionID = entity.Ptr[int64](77)
			payments := newFakePayments(p)
			actionTime := testNow.Add(-time.Minute)
			settlement := &fakeSettlement{status: func(actionID int64) (*provider.ActionStatusResult, error) {
				if actionID != 77 {
					t.Fatalf("unexpected action id %d", actionID)
				}
				return &provider.ActionStatusResult{Code: tc.code, ActionStatus: entity.Ptr(tc.status), ActionTime: &actionTime}, nil
			}}
			trigger := &recordingTrigger{}
			job := NewSettlementStatusJob(testDeps(payments, &fakeEvents{}, nil), testRetry(), settlement, trigger)

			if err := job.RunOnce(context.Background()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			got := payments.get("p-1")
			if got.IsAbsFailed != tc.wantFailed || got.IsFailed != tc.wantFailed {
				t.Fatalf("expected failed=%v, got absFailed=%v failed=%v", tc.wantFailed, got.IsAbsFailed, got.IsFailed)
			}
			if got.IsAbsFinished != tc.wantSettled {
				t.Fatalf("expected settled=%v, got %v", tc.wantSettled, got.IsAbsFinished)
			}
			if got.AbsActionTime == nil || !got.AbsActionTime.Equal(actionTime) {
				t.Fatalf("expected action time stored, got %v", got.AbsActionTime)
			}
			if tc.wantTerminal {
				if got.IsNotified || len(trigger.ids) != 1 {
					t.Fatalf("expected notification re-armed and requested, notified=%v triggers=%v", got.IsNotified, trigger.ids)
				}
				return
			}
			if !got.IsNotified || len(trigger.ids) != 0 {
				t.Fatalf("expected notification untouched, notified=%v triggers=%v", got.IsNotified, trigger.ids)
			}
		})
	}
}
