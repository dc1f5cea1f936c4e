package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/hotel-harvester/internal/harvest"
)

func TestAppendInsertsResultRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "", "run-1")
	require.NoError(t, err)

	rec := harvest.ResultRecord{CityCode: "AAA", HotelCodes: []string{"10"}, Latitude: 1.5, Longitude: -2.5}
	mock.ExpectExec("INSERT INTO harvest_records").
		WithArgs(
			"run-1",
			"results.json",
			"AAA",
			[]byte(`{"cityCode":"AAA","hotelCodes":["10"],"latitude":1.5,"longitude":-2.5}`),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Append(context.Background(), "results.json", rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendInsertsSummaryRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "city_rows", "run-2")
	require.NoError(t, err)

	rec := harvest.CitySummary{CityCode: "BBB", CityName: "Beta", HotelCodes: []string{"7"}}
	mock.ExpectExec("INSERT INTO city_rows").
		WithArgs("run-2", "city_and_hotels.json", "BBB", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Append(context.Background(), "city_and_hotels.json", rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendWrapsExecFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "harvest_records", "run-3")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO harvest_records").
		WillReturnError(errors.New("connection reset"))

	err = store.Append(context.Background(), "results.json", harvest.ResultRecord{CityCode: "CCC"})
	require.ErrorIs(t, err, harvest.ErrSink)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil, "x", "run")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewWithPool(mock, "bad-name;drop", "run")
	require.Error(t, err)
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.EqualError(t, err, "db.dsn is required")
}
