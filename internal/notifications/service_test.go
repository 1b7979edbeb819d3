package notifications

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ridelinkhq/ridelink-backend/internal/profiles"
	"github.com/ridelinkhq/ridelink-backend/pkg/db/models"
	"github.com/ridelinkhq/ridelink-backend/pkg/enums"
	"github.com/ridelinkhq/ridelink-backend/pkg/logger"
	"github.com/ridelinkhq/ridelink-backend/pkg/pagination"
)

type fakeRepo struct {
	rows []*models.Notification
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(ctx context.Context, n *models.Notification) error {
	f.rows = append(f.rows, n)
	return nil
}

func (f *fakeRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range f.rows {
		if n.AccountID == accountID {
			out = append(out, *n)
		}
	}
	return out, nil
}

type fakeProfiles struct {
	byID map[uuid.UUID]*models.Profile
}

func (f *fakeProfiles) WithTx(tx *gorm.DB) profiles.Repository { return f }

func (f *fakeProfiles) Get(ctx context.Context, accountID uuid.UUID) (*models.Profile, error) {
	if p, ok := f.byID[accountID]; ok {
		return p, nil
	}
	return nil, profiles.ErrNotFound
}

func (f *fakeProfiles) Upsert(ctx context.Context, profile *models.Profile) error { return nil }

func (f *fakeProfiles) SetAvailability(ctx context.Context, accountID uuid.UUID, available bool) error {
	return nil
}

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) Send(ctx context.Context, phone, message string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, message)
	return nil
}

func newTestService(t *testing.T) (Service, *fakeRepo, *fakeProfiles, *fakeSender) {
	t.Helper()

	repo := &fakeRepo{}
	profs := &fakeProfiles{byID: make(map[uuid.UUID]*models.Profile)}
	sender := &fakeSender{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	svc, err := NewService(repo, profs, sender, logg)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc, repo, profs, sender
}

func TestService_EarningCreditedPersistsAndSends(t *testing.T) {
	svc, repo, profs, sender := newTestService(t)

	accountID := uuid.New()
	profs.byID[accountID] = &models.Profile{AccountID: accountID, Phone: "+15550002222"}

	svc.EarningCredited(context.Background(), accountID, 9000, enums.SettlementSourceNegotiation, uuid.New())

	if len(repo.rows) != 1 {
		t.Fatalf("expected persisted notification, got %d", len(repo.rows))
	}
	row := repo.rows[0]
	if row.Kind != enums.NotificationKindEarningCredited {
		t.Fatalf("unexpected kind %s", row.Kind)
	}
	if row.Phone != "+15550002222" {
		t.Fatalf("phone not resolved from profile, got %q", row.Phone)
	}
	if row.SentAt == nil {
		t.Fatal("expected sent_at to be set on success")
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one delivery, got %d", len(sender.sent))
	}
	if want := "You earned $90.00."; sender.sent[0][:len(want)] != want {
		t.Fatalf("unexpected message %q", sender.sent[0])
	}
}

func TestService_SendFailureIsRecordedNotFatal(t *testing.T) {
	svc, repo, _, sender := newTestService(t)
	sender.err = errors.New("carrier unavailable")

	svc.PaymentReceived(context.Background(), uuid.New(), 2500)

	if len(repo.rows) != 1 {
		t.Fatalf("failed delivery must still be persisted, got %d rows", len(repo.rows))
	}
	row := repo.rows[0]
	if row.SentAt != nil {
		t.Fatal("sent_at must stay nil on failure")
	}
	if row.Error == nil || *row.Error != "carrier unavailable" {
		t.Fatalf("delivery error not recorded: %+v", row.Error)
	}
}

func TestService_DispatchSkipsNilAccount(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	svc.BookingUpdate(context.Background(), uuid.Nil, "driver assigned")

	if len(repo.rows) != 0 {
		t.Fatal("nil account must not produce a notification")
	}
}
