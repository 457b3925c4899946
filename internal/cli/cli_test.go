package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/registrar/internal/testutil"
)

const testCatalog = `package university

program: SYS: {name: "Systems", total_credits: 160, semesters: 10}
course: MAT101: {name: "Calculus", credits: 4, type: "foundational"}
course: PRG101: {name: "Programming", credits: 4, type: "mandatory"}
student: S001: {name: "Ana", email: "ana@uni.edu", program: "SYS", semester: 1}
student: S002: {name: "Luis", email: "luis@uni.edu", program: "SYS", semester: 1}
`

type cliEnv struct {
	t       *testing.T
	opts    *RootOptions
	db      string
	catalog string
}

func newEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	catalogDir := filepath.Join(dir, "catalog")
	require.NoError(t, os.MkdirAll(catalogDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(catalogDir, "catalog.cue"), []byte(testCatalog), 0o644))

	return &cliEnv{
		t:       t,
		opts:    &RootOptions{IDs: testutil.NewSequenceGenerator("id")},
		db:      filepath.Join(dir, "registrar.db"),
		catalog: catalogDir,
	}
}

func (e *cliEnv) run(args ...string) (string, error) {
	return e.runContext(context.Background(), args...)
}

func (e *cliEnv) runContext(ctx context.Context, args ...string) (string, error) {
	e.t.Helper()
	cmd := newRootCommand(e.opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--db", e.db))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func (e *cliEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	require.NoError(e.t, err, "output: %s", out)
	return out
}

func TestInvalidFormat(t *testing.T) {
	env := newEnv(t)
	_, err := env.run("validate", env.catalog, "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestValidate(t *testing.T) {
	env := newEnv(t)
	out := env.mustRun("validate", env.catalog)

	assert.Contains(t, out, "is valid (1 files)")
	assert.Contains(t, out, "courses:    2")
	assert.Contains(t, out, "students:   2")
}

func TestValidateJSON(t *testing.T) {
	env := newEnv(t)
	out := env.mustRun("validate", env.catalog, "--format", "json")

	var resp struct {
		Status string        `json:"status"`
		Data   CatalogReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Programs)
	assert.Equal(t, 2, resp.Data.Courses)
	assert.Equal(t, 0, resp.Data.Professors)
}

func TestValidateInvalidCatalog(t *testing.T) {
	env := newEnv(t)
	bad := `package university

course: MAT101: {name: "Calculus", credits: 7, type: "foundational"}
`
	require.NoError(t, os.WriteFile(filepath.Join(env.catalog, "catalog.cue"), []byte(bad), 0o644))

	out, err := env.run("validate", env.catalog)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E101")
}

func TestValidateMissingDirectory(t *testing.T) {
	env := newEnv(t)
	out, err := env.run("validate", filepath.Join(env.catalog, "absent"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "catalog directory not found")
}

func TestSeedIsIdempotent(t *testing.T) {
	env := newEnv(t)

	out := env.mustRun("seed", env.catalog)
	assert.Contains(t, out, "1 programs, 2 courses, 0 professors, 2 students (5 changes)")

	out = env.mustRun("seed", env.catalog)
	assert.Contains(t, out, "(0 changes)")
}

func TestOperations(t *testing.T) {
	env := newEnv(t)
	env.mustRun("seed", env.catalog)

	out := env.mustRun("enroll", "--student", "S001", "--course", "MAT101", "--period", "2025-1")
	assert.Equal(t, "Enrolled S001 in MAT101 for 2025-1: id-0002\n", out)

	out = env.mustRun("trace", "--flow", "id-0001")
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "trace_flow", []byte(out))

	out, err := env.run("enroll", "--student", "S001", "--course", "MAT101", "--period", "2025-1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [DUPLICATE_ENROLLMENT]")

	out = env.mustRun("grade", "id-0002", "4.5")
	assert.Equal(t, "Enrollment id-0002 is approved (gpa 4.50, credits 4)\n", out)

	out, err = env.run("withdraw", "id-0002")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [INVALID_STATE_TRANSITION]")

	out, err = env.run("graduate", "S001")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [INSUFFICIENT_CREDITS]")

	out, err = env.run("grade", "id-0002", "A+")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [INVALID_ARGUMENT]")

	out, err = env.run("grade", "missing", "4.0")
	require.Error(t, err)
	assert.Contains(t, out, "Error [NOT_FOUND]")
}

func TestWithdraw(t *testing.T) {
	env := newEnv(t)
	env.mustRun("seed", env.catalog)
	env.mustRun("enroll", "--student", "S002", "--course", "MAT101,PRG101", "--period", "2025-1")

	out := env.mustRun("withdraw", "id-0003")
	assert.Equal(t, "enrollment id-0003 is withdrawn\n", out)

	out = env.mustRun("withdraw", "id-0002", "--format", "json")
	var resp struct {
		Status string      `json:"status"`
		Data   StateReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, StateReport{Kind: "enrollment", ID: "id-0002", State: "withdrawn"}, resp.Data)
}

func TestEnrollJSON(t *testing.T) {
	env := newEnv(t)
	env.mustRun("seed", env.catalog)

	out := env.mustRun("enroll", "--student", "S001", "--course", "MAT101", "--course", "PRG101",
		"--period", "2025-1", "--format", "json")

	var resp struct {
		Status string       `json:"status"`
		Data   EnrollReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"id-0002", "id-0003"}, resp.Data.EnrollmentIDs)
	assert.Equal(t, []string{"MAT101", "PRG101"}, resp.Data.Courses)
}

func TestEnrollRequiresFlags(t *testing.T) {
	env := newEnv(t)
	_, err := env.run("enroll", "--student", "S001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestRunOnceAndCursors(t *testing.T) {
	env := newEnv(t)
	env.mustRun("seed", env.catalog)
	env.mustRun("enroll", "--student", "S001", "--course", "MAT101", "--period", "2025-1")

	out := env.mustRun("run", "--once")
	assert.Contains(t, out, "All pending changes processed.")

	out = env.mustRun("cursors", "--format", "json")
	var resp struct {
		Data CursorReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	positions := map[string]int64{}
	for _, c := range resp.Data.Cursors {
		positions[c.Subscriber+"/"+string(c.Collection)] = c.Position
	}
	assert.Equal(t, int64(7), positions["audit/student"])
	assert.Equal(t, int64(6), positions["audit/enrollment"])
	assert.Equal(t, int64(6), positions["capacity/enrollment"])

	out = env.mustRun("replay", "audit", "--collection", "student", "--to", "0")
	assert.Equal(t, "Cursor audit/student moved from 7 to 0\n", out)

	out = env.mustRun("cursors")
	assert.Regexp(t, `audit\s+student\s+0\n`, out)

	// The rewound audit trigger sees the student events again; audit
	// records are idempotent per event.
	env.mustRun("run", "--once")
	out = env.mustRun("cursors")
	assert.Regexp(t, `audit\s+student\s+7\n`, out)
}

func TestReplayRejectsUnknownCollection(t *testing.T) {
	env := newEnv(t)
	_, err := env.run("replay", "audit", "--collection", "instructors", "--to", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTraceAll(t *testing.T) {
	env := newEnv(t)
	out := env.mustRun("trace")
	assert.Equal(t, "No changes found.\n", out)

	env.mustRun("seed", env.catalog)
	out = env.mustRun("trace", "--collection", "course", "--format", "json")

	var resp struct {
		Data struct {
			Events []struct {
				Seq        int64  `json:"seq"`
				Collection string `json:"collection"`
				Op         string `json:"op"`
			} `json:"events"`
			Next int64 `json:"next"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Events, 2)
	for _, ev := range resp.Data.Events {
		assert.Equal(t, "course", ev.Collection)
		assert.Equal(t, "insert", ev.Op)
	}
	assert.Equal(t, resp.Data.Events[1].Seq, resp.Data.Next)

	out = env.mustRun("trace", "--limit", "2")
	assert.Contains(t, out, "[1] ")
	assert.Contains(t, out, "[2] ")
	assert.NotContains(t, out, "[3] ")

	_, err := env.run("trace", "--collection", "instructors")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunStopsOnCancel(t *testing.T) {
	env := newEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	out, err := env.runContext(ctx, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "Engine started.")
}

func TestServeStopsOnCancel(t *testing.T) {
	env := newEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := env.runContext(ctx, "serve", "--addr", "127.0.0.1:0")
	require.NoError(t, err)
}

func TestTestCommand(t *testing.T) {
	env := newEnv(t)

	out, err := env.run("test", filepath.Join("..", "harness", "testdata", "scenarios"))
	require.NoError(t, err, "output: %s", out)
	assert.Contains(t, out, "PASS  capacity_rollback (golden: match)")
	assert.Contains(t, out, "PASS  graduation (golden: none)")
	assert.Contains(t, out, "2 passed, 0 failed, 2 total")
}

func TestTestCommandFailures(t *testing.T) {
	env := newEnv(t)
	dir := t.TempDir()
	scenario := `
name: wrong_credits
description: expects the wrong credit total
catalog_source: |
  program: SYS: {name: "Systems", total_credits: 160, semesters: 10}
  course: MAT101: {name: "Calculus", credits: 4, type: "foundational"}
  student: S001: {name: "Ana", email: "ana@uni.edu", program: "SYS", semester: 1}
flow:
  - op: enroll
    student: S001
    courses: [MAT101]
    period: "2025-1"
    expect:
      credits: 3
assertions:
  - type: risk_alerts
    count: 0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong_credits.yaml"), []byte(scenario), 0o644))

	out, err := env.run("test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL  wrong_credits")
	assert.Contains(t, out, "expected credits 3, got 4")

	_, err = env.run("test", filepath.Join(dir, "absent"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out = env.mustRun("test", dir, "--filter", "nothing*")
	assert.Equal(t, "No scenarios found.\n", out)
}
