package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "imageref/pkg/domain-errors"
)

func TestBucketFor(t *testing.T) {
	t.Run("every supported age maps to exactly one bucket", func(t *testing.T) {
		lo, hi := SupportedAgeRange()
		for age := lo; age <= hi; age++ {
			hits := 0
			for _, b := range buckets {
				if age >= b.min && age <= b.max {
					hits++
				}
			}
			assert.Equal(t, 1, hits, "age %d", age)

			c, err := BucketFor(age)
			require.NoError(t, err, "age %d", age)
			assert.True(t, c.IsValid())
		}
	})

	t.Run("inclusive boundaries", func(t *testing.T) {
		cases := map[int]Category{
			5: Category5To8, 8: Category5To8,
			9: Category9To12, 12: Category9To12,
			13: Category13To15, 15: Category13To15,
		}
		for age, want := range cases {
			got, err := BucketFor(age)
			require.NoError(t, err)
			assert.Equal(t, want, got, "age %d", age)
		}
	})

	t.Run("out of range ages are rejected", func(t *testing.T) {
		for _, age := range []int{-1, 0, 4, 16, 99} {
			_, err := BucketFor(age)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidAge), "age %d", age)
		}
	})
}

func TestStatus(t *testing.T) {
	assert.True(t, Status("Done").IsDone())
	assert.True(t, Status(" done ").IsDone())
	assert.False(t, Status("Pending").IsDone())
	assert.False(t, Status("").IsDone())
	assert.Equal(t, StatusPending, Status("").Normalized())
	assert.Equal(t, StatusDone, Status("DONE").Normalized())
}

func TestMatching(t *testing.T) {
	r := Record{ChildName: "Asha", Email: "A@X.com"}
	assert.True(t, r.MatchesEmail("  a@x.COM "))
	assert.False(t, r.MatchesEmail("b@x.com"))
	assert.True(t, r.MatchesChild("a@x.com", "asha"))
	assert.False(t, r.MatchesChild("a@x.com", "Ravi"))
}

func TestClassify(t *testing.T) {
	t.Run("no records is not found", func(t *testing.T) {
		res := Classify(nil)
		assert.Equal(t, OutcomeNotFound, res.Outcome)
		assert.True(t, dErrors.HasCode(res.Err(), dErrors.CodeNotFound))
	})

	t.Run("all done is already complete", func(t *testing.T) {
		res := Classify([]Record{
			{ChildName: "Asha", Status: StatusDone},
			{ChildName: "Ravi", Status: "done"},
		})
		assert.Equal(t, OutcomeAlreadyComplete, res.Outcome)
		assert.Len(t, res.Children, 2)
		assert.True(t, dErrors.HasCode(res.Err(), dErrors.CodeAlreadyComplete))
	})

	t.Run("mixed is eligible with every child once", func(t *testing.T) {
		res := Classify([]Record{
			{ChildName: "Asha", Age: 7, Status: StatusDone},
			{ChildName: "Ravi", Age: 10, Status: ""},
		})
		assert.Equal(t, OutcomeEligible, res.Outcome)
		assert.NoError(t, res.Err())
		assert.Equal(t, []Child{
			{ChildName: "Asha", Age: 7, Status: StatusDone},
			{ChildName: "Ravi", Age: 10, Status: StatusPending},
		}, res.Children)
	})
}

func TestUploadFormValidate(t *testing.T) {
	t.Run("parses age", func(t *testing.T) {
		f := &UploadForm{ChildName: " Asha ", Email: "a@x.com", RawAge: " 7 "}
		f.Sanitize()
		require.NoError(t, f.Validate())
		assert.Equal(t, 7, f.Age)
		assert.Equal(t, "Asha", f.ChildName)
	})

	t.Run("non-numeric age", func(t *testing.T) {
		f := &UploadForm{ChildName: "Asha", Email: "a@x.com", RawAge: "seven"}
		assert.True(t, dErrors.HasCode(f.Validate(), dErrors.CodeInvalidAge))
	})

	t.Run("out of range age", func(t *testing.T) {
		f := &UploadForm{ChildName: "Asha", Email: "a@x.com", RawAge: "16"}
		assert.True(t, dErrors.HasCode(f.Validate(), dErrors.CodeInvalidAge))
	})

	t.Run("missing child name", func(t *testing.T) {
		f := &UploadForm{Email: "a@x.com", RawAge: "7"}
		assert.True(t, dErrors.HasCode(f.Validate(), dErrors.CodeBadRequest))
	})
}

func TestCloneIsDeep(t *testing.T) {
	r := Record{ChildName: "Asha", Extra: map[string]string{"Notes": "x"}}
	c := r.Clone()
	c.Extra["Notes"] = "y"
	assert.Equal(t, "x", r.Extra["Notes"])
}
