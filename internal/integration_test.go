package internal

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dshills/issuescout/internal/agent"
	"github.com/dshills/issuescout/internal/github"
	"github.com/dshills/issuescout/internal/gitrepo"
	"github.com/dshills/issuescout/internal/llm"
	"github.com/dshills/issuescout/internal/logging"
	"github.com/dshills/issuescout/internal/pipeline"
	"github.com/dshills/issuescout/internal/profile"
	"github.com/dshills/issuescout/internal/triage"
)

// skipUnlessIntegration skips the test unless ISSUESCOUT_INTEGRATION=1.
func skipUnlessIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("ISSUESCOUT_INTEGRATION") != "1" {
		t.Skip("skipping integration test (set ISSUESCOUT_INTEGRATION=1 to run)")
	}
}

const integrationRepo = "spf13/pflag"

func rankedFixture(t *testing.T) []triage.Ranked {
	t.Helper()
	scorer, err := triage.NewScorer(triage.DefaultWeights(), goldenNow)
	if err != nil {
		t.Fatal(err)
	}
	ranked, err := triage.Rank(context.Background(), scorer, loadRecords(t), 2)
	if err != nil {
		t.Fatal(err)
	}
	return ranked
}

// runTriage polishes reasons with a live provider and checks they came back
// from the model rather than the scorer fallback.
func runTriage(t *testing.T, provider llm.Provider) {
	t.Helper()
	prof, err := profile.LoadBuiltin(profile.DefaultName)
	if err != nil {
		t.Fatal(err)
	}
	ranked := rankedFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Second)
	defer cancel()

	tr := &agent.Triage{
		Model:   agent.Model{Provider: llm.WithRetry(provider, llm.DefaultRetryConfig(), nil), Temperature: 0.2},
		Profile: prof,
		Log:     logging.New(logging.Options{Level: "debug"}),
	}
	out, err := tr.Run(ctx, nil, ranked)
	if err != nil {
		t.Fatalf("triage: %v", err)
	}
	for _, r := range out.Ranked {
		if len(r.Why) == 0 || len(r.Why) > agent.MaxReasons {
			t.Errorf("%s: got %d reasons", r.Record.ID, len(r.Why))
		}
		t.Logf("%s: %v", r.Record.ID, r.Why)
	}
	if equalStrings(out.Ranked[0].Why, ranked[0].Breakdown.Reasons[:min(len(ranked[0].Breakdown.Reasons), agent.MaxReasons)]) {
		t.Error("reasons match the scorer fallback; model output was not used")
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ---------- Per-provider triage ----------

func TestIntegrationAnthropic(t *testing.T) {
	skipUnlessIntegration(t)
	t.Parallel()
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		t.Skip("ANTHROPIC_API_KEY not set")
	}
	provider, err := llm.ResolveProvider("anthropic:claude-sonnet-4-6")
	if err != nil {
		t.Fatalf("resolve provider: %v", err)
	}
	runTriage(t, provider)
}

func TestIntegrationOpenAI(t *testing.T) {
	skipUnlessIntegration(t)
	t.Parallel()
	if os.Getenv("OPENAI_API_KEY") == "" {
		t.Skip("OPENAI_API_KEY not set")
	}
	provider, err := llm.ResolveProvider("openai:gpt-4o-mini")
	if err != nil {
		t.Fatalf("resolve provider: %v", err)
	}
	runTriage(t, provider)
}

func TestIntegrationGroq(t *testing.T) {
	skipUnlessIntegration(t)
	t.Parallel()
	if os.Getenv("GROQ_API_KEY") == "" {
		t.Skip("GROQ_API_KEY not set")
	}
	provider, err := llm.ResolveProvider("groq:llama-3.3-70b-versatile")
	if err != nil {
		t.Fatalf("resolve provider: %v", err)
	}
	runTriage(t, provider)
}

// ---------- GitHub and clone ----------

func TestIntegrationGitHubRank(t *testing.T) {
	skipUnlessIntegration(t)
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	p := &pipeline.Pipeline{
		GitHub:  github.NewClient(os.Getenv("GITHUB_TOKEN")),
		Weights: triage.DefaultWeights(),
		TopK:    3,
		List:    github.ListOptions{Max: 20},
		Log:     logging.New(logging.Options{Level: "debug"}),
	}
	out, err := p.RankIssues(ctx, integrationRepo)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if out.Repo == nil || out.Repo.DefaultBranch == "" {
		t.Errorf("repo metadata missing: %+v", out.Repo)
	}
	if len(out.Ranked) > 3 {
		t.Errorf("got %d ranked issues, want <= 3", len(out.Ranked))
	}
	for _, r := range out.Ranked {
		t.Logf("#%d %s: %d", r.Record.Number, r.Record.Title, r.Breakdown.Total)
	}
}

func TestIntegrationCloneAndLocate(t *testing.T) {
	skipUnlessIntegration(t)
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Second)
	defer cancel()

	cl := &gitrepo.Cloner{CacheDir: t.TempDir(), Log: logging.New(logging.Options{Level: "debug"})}
	dir, err := cl.Clone(ctx, "https://github.com/"+integrationRepo)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	// A second clone reuses the checkout.
	again, err := cl.Clone(ctx, integrationRepo)
	if err != nil || again != dir {
		t.Fatalf("reuse: dir %s vs %s, err %v", again, dir, err)
	}

	tree, err := gitrepo.FileTree(dir, gitrepo.DefaultMaxDepth)
	if err != nil {
		t.Fatal(err)
	}
	if len(tree) == 0 {
		t.Fatal("empty file tree")
	}

	rec := triage.Record{
		ID: integrationRepo + "#0", Number: 0,
		Title:     "Boolean flag parsing ignores NoOptDefVal",
		Body:      "Parsing a bool flag with NoOptDefVal set does not use the default.",
		CreatedAt: goldenNow, UpdatedAt: goldenNow,
	}
	out, err := (&agent.Locator{}).Run(ctx, rec, dir, tree)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if len(out.Hits) == 0 {
		t.Error("expected at least one hit in pflag for NoOptDefVal")
	}
	for _, h := range out.Hits {
		t.Logf("%s %v %s", h.Path, h.Lines, h.WhyRelevant)
	}
}
