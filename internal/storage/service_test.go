package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
)

var errSave = errors.New("save error")

func TestSaveMedia(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO media_objects`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), "photo").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewService(mock, "https://media.test/")
	obj, err := svc.SaveMedia(context.Background(), "user-1", "trip.jpg", "photo")
	if err != nil {
		t.Fatalf("save media: %v", err)
	}
	if obj.ID == "" || !strings.HasPrefix(obj.URL, "https://media.test/") || !strings.HasSuffix(obj.URL, "/trip.jpg") {
		t.Fatalf("unexpected object: %+v", obj)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveMediaRejectsUnknownType(t *testing.T) {
	svc := NewService(nil, "")
	if _, err := svc.SaveMedia(context.Background(), "user-1", "file", "gif"); !errors.Is(err, ErrBadMediaType) {
		t.Fatalf("expected media type rejection, got %v", err)
	}
}

func TestSaveMediaDefaultFileName(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO media_objects`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), "video").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewService(mock, "https://media.test")
	obj, err := svc.SaveMedia(context.Background(), "user-1", "", "video")
	if err != nil {
		t.Fatalf("save media: %v", err)
	}
	if !strings.HasSuffix(obj.URL, "/upload") {
		t.Fatalf("expected default file name, got %s", obj.URL)
	}
}

func TestSaveMediaDBError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO media_objects`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), "photo").
		WillReturnError(errSave)

	svc := NewService(mock, "")
	if _, err := svc.SaveMedia(context.Background(), "user-1", "file", "photo"); err == nil {
		t.Fatalf("expected error")
	}
}
