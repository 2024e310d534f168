package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"imageref/internal/registration/models"
	dErrors "imageref/pkg/domain-errors"
	"imageref/pkg/platform/sentinel"
	"imageref/pkg/testutil"
)

type CSVStoreSuite struct {
	suite.Suite
	path  string
	store *CSVStore
}

func TestCSVStoreSuite(t *testing.T) {
	suite.Run(t, new(CSVStoreSuite))
}

func (s *CSVStoreSuite) SetupTest() {
	data, err := os.ReadFile("testdata/ledger.csv")
	s.Require().NoError(err)
	s.path = filepath.Join(s.T().TempDir(), "ledger.csv")
	s.Require().NoError(os.WriteFile(s.path, data, 0o644))
	s.store = NewCSV(s.path)
}

func (s *CSVStoreSuite) TestLoadAll() {
	records, err := s.store.LoadAll(context.Background())
	s.Require().NoError(err)
	s.Require().Len(records, 3)

	s.Equal("Asha", records[0].ChildName)
	s.Equal(7, records[0].Age)
	s.Equal("a@x.com", records[0].Email)
	s.Equal("REG-001", records[0].RegistrationID)
	s.Equal(models.StatusPending, records[0].Status)
	s.Equal("Singh, Arjun", records[2].ParentName)
	s.True(records[2].Status.IsDone())
}

// Invariant: loading then saving an unmodified ledger yields identical records
// in identical order.
func (s *CSVStoreSuite) TestRoundTripPreservesRecords() {
	ctx := context.Background()
	before, err := s.store.LoadAll(ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.store.SaveAll(ctx, before))

	after, err := NewCSV(s.path).LoadAll(ctx)
	s.Require().NoError(err)
	s.Equal(before, after)

	original, err := os.ReadFile("testdata/ledger.csv")
	s.Require().NoError(err)
	rewritten, err := os.ReadFile(s.path)
	s.Require().NoError(err)
	s.Equal(string(original), string(rewritten))

	s.Run("age cells are kept verbatim", func() {
		header := strings.Join(Columns, ",") + "\n"
		rows := "" +
			"Asha,P,2017-03-02,07,F,CBSE,2,B,+91,1,a@x.com,REG-1,Pending\n" +
			"Ravi,P,2014-06-11,0,M,CBSE,5,A,+91,1,a@x.com,REG-2,Pending\n" +
			"Mira,P,2016-01-01,\" 8 \",F,CBSE,3,A,+91,2,m@x.com,REG-3,Pending\n" +
			"Kabir,P,2011-01-20,,M,ICSE,8,C,+91,3,k@y.org,REG-4,Pending\n"
		path := filepath.Join(s.T().TempDir(), "ages.csv")
		s.Require().NoError(os.WriteFile(path, []byte(header+rows), 0o644))
		ledger := NewCSV(path)

		records, err := ledger.LoadAll(ctx)
		s.Require().NoError(err)
		s.Equal([]int{7, 0, 8, 0}, []int{records[0].Age, records[1].Age, records[2].Age, records[3].Age})

		err = ledger.Update(ctx, func(records []models.Record) (bool, error) {
			records[3].Status = models.StatusDone
			return true, nil
		})
		s.Require().NoError(err)

		rewritten, err := os.ReadFile(path)
		s.Require().NoError(err)
		expected := header + strings.Replace(rows, "REG-4,Pending", "REG-4,Done", 1)
		s.Equal(expected, string(rewritten))
	})

	s.Run("a changed age is written canonically", func() {
		path := filepath.Join(s.T().TempDir(), "ages.csv")
		s.Require().NoError(os.WriteFile(path, []byte(strings.Join(Columns, ",")+"\n"+
			"Asha,P,2017-03-02,07,F,CBSE,2,B,+91,1,a@x.com,REG-1,Pending\n"), 0o644))
		ledger := NewCSV(path)

		err := ledger.Update(ctx, func(records []models.Record) (bool, error) {
			records[0].Age = 8
			return true, nil
		})
		s.Require().NoError(err)

		records, err := ledger.LoadAll(ctx)
		s.Require().NoError(err)
		s.Equal(8, records[0].Age)
		s.Empty(records[0].AgeCell)
	})
}

func (s *CSVStoreSuite) TestUpdateOnlyTouchesTargetRecord() {
	ctx := context.Background()
	before, err := s.store.LoadAll(ctx)
	s.Require().NoError(err)

	err = s.store.Update(ctx, func(records []models.Record) (bool, error) {
		for i := range records {
			if records[i].MatchesChild("a@x.com", "asha") {
				records[i].Status = models.StatusDone
			}
		}
		return true, nil
	})
	s.Require().NoError(err)

	after, err := s.store.LoadAll(ctx)
	s.Require().NoError(err)
	s.Require().Len(after, len(before))
	s.Equal(models.StatusDone, after[0].Status)

	expected := before[0]
	expected.Status = models.StatusDone
	s.Equal(expected, after[0])
	s.Equal(before[1], after[1])
	s.Equal(before[2], after[2])
}

func (s *CSVStoreSuite) TestUpdateWithoutChangeSkipsWrite() {
	info, err := os.Stat(s.path)
	s.Require().NoError(err)
	s.Require().NoError(os.Chtimes(s.path, info.ModTime().Add(-time.Hour), info.ModTime().Add(-time.Hour)))
	stale, err := os.Stat(s.path)
	s.Require().NoError(err)

	err = s.store.Update(context.Background(), func([]models.Record) (bool, error) {
		return false, nil
	})
	s.Require().NoError(err)

	now, err := os.Stat(s.path)
	s.Require().NoError(err)
	s.Equal(stale.ModTime(), now.ModTime())
}

func (s *CSVStoreSuite) TestUpdatePropagatesMutationError() {
	err := s.store.Update(context.Background(), func([]models.Record) (bool, error) {
		return false, dErrors.New(dErrors.CodeAlreadyComplete, "done")
	})
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyComplete))
}

// Invariant: concurrent read-modify-write cycles never lose an update.
func (s *CSVStoreSuite) TestConcurrentUpdatesAreSerialized() {
	ctx := context.Background()
	var rows []models.Record
	for i := 0; i < 40; i++ {
		rows = append(rows, models.Record{
			ChildName: fmt.Sprintf("child-%02d", i),
			Email:     "family@x.com",
			Age:       9,
			Status:    models.StatusPending,
		})
	}
	s.Require().NoError(s.store.SaveAll(ctx, rows))

	result := testutil.RunConcurrent(len(rows), func(idx int) error {
		name := fmt.Sprintf("child-%02d", idx)
		return s.store.Update(ctx, func(records []models.Record) (bool, error) {
			for i := range records {
				if records[i].ChildName == name {
					records[i].Status = models.StatusDone
				}
			}
			return true, nil
		})
	})
	s.Equal(int32(len(rows)), result.Successes)

	after, err := s.store.LoadAll(ctx)
	s.Require().NoError(err)
	for _, r := range after {
		s.True(r.Status.IsDone(), r.ChildName)
	}
}

func (s *CSVStoreSuite) TestSaveLeavesNoTempFiles() {
	ctx := context.Background()
	records, err := s.store.LoadAll(ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.store.SaveAll(ctx, records))

	entries, err := os.ReadDir(filepath.Dir(s.path))
	s.Require().NoError(err)
	s.Len(entries, 1)
}

func TestLoadAllErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file", func(t *testing.T) {
		_, err := NewCSV(filepath.Join(t.TempDir(), "nope.csv")).LoadAll(ctx)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeLedgerUnreadable))
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	malformed := map[string]string{
		"empty file":      "",
		"missing column":  "Child Name,Email\nAsha,a@x.com\n",
		"ragged row":      strings.Join(Columns, ",") + "\nAsha,Meera\n",
		"non numeric age": strings.Join(Columns, ",") + "\nAsha,Meera,2017-03-02,seven,F,CBSE,2,B,+91,1,a@x.com,R1,Pending\n",
	}
	for name, content := range malformed {
		content := content
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ledger.csv")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			_, err := NewCSV(path).LoadAll(ctx)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeLedgerUnreadable))
			assert.ErrorIs(t, err, sentinel.ErrMalformed)
		})
	}
}

func TestExtraColumnsSurviveRewrite(t *testing.T) {
	ctx := context.Background()
	header := append([]string{"Timestamp"}, Columns...)
	header = append(header, "Notes")
	content := strings.Join(header, ",") + "\n" +
		"2024-01-01,Asha,Meera,2017-03-02,7,F,CBSE,2,B,+91,1,a@x.com,R1,Pending,likes drawing\n"

	path := filepath.Join(t.TempDir(), "ledger.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	st := NewCSV(path)
	err := st.Update(ctx, func(records []models.Record) (bool, error) {
		records[0].Status = models.StatusDone
		return true, nil
	})
	require.NoError(t, err)

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(header, ",")+"\n"+
		"2024-01-01,Asha,Meera,2017-03-02,7,F,CBSE,2,B,+91,1,a@x.com,R1,Done,likes drawing\n", string(out))
}

func TestBOMHeaderIsAccepted(t *testing.T) {
	content := "\ufeff" + strings.Join(Columns, ",") + "\nAsha,Meera,2017-03-02,7,F,CBSE,2,B,+91,1,a@x.com,R1,Pending\n"
	records, header, err := Decode(strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, ColChildName, header[0])
	assert.Equal(t, "Asha", records[0].ChildName)
}

func TestEncodeWithoutHeaderUsesCanonicalOrder(t *testing.T) {
	var b strings.Builder
	err := Encode(&b, nil, []models.Record{{ChildName: "Asha", Age: 7, Email: "a@x.com", Status: models.StatusPending, Extra: map[string]string{"Notes": "n"}}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(append(append([]string{}, Columns...), "Notes"), ","), lines[0])
	assert.Equal(t, "Asha,,,7,,,,,,,a@x.com,,Pending,n", lines[1])
}
