package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/WessleyAI/wessley-advisor/engine/domain"
	"github.com/WessleyAI/wessley-advisor/pkg/config"
	"github.com/WessleyAI/wessley-advisor/pkg/llm"
)

const registryCSV = `brand,model,year,engine_cc,fuel,automatic
Toyota,Corolla,2016,1600,בנזין,1
Mazda,3,2018,2000,בנזין,1
Peugeot,308,2016,1600,דיזל,0
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.csv")
	if err := os.WriteFile(path, []byte(registryCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Registry.Path = path
	cfg.History.DBPath = filepath.Join(dir, "history.db")
	cfg.Pricing.RefYear = 2025
	cfg.LLM.Propose = false
	cfg.LLM.Backoff = 0
	return cfg
}

func TestBuildAndRecommend(t *testing.T) {
	gen := llm.GeneratorFunc(func(_ context.Context, req llm.Request) (string, error) {
		if req.JSON {
			return `{"toyota corolla 2016":{"base_price":100000},"mazda 3 2018":{"base_price":160000}}`, nil
		}
		return "Corolla it is.", nil
	})
	a, err := Build(context.Background(), testConfig(t), nil, WithGenerator(gen), WithLocalHistory())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if a.History == nil || a.NATS != nil || a.Index != nil {
		t.Fatalf("unexpected optional parts: %+v", a)
	}

	q := domain.UserQuery{
		BudgetMin: 20000, BudgetMax: 40000,
		YearMin: 2010, YearMax: 2020, CCMin: 1200, CCMax: 2000,
		Fuel: "בנזין", Gearbox: "אוטומט",
	}
	rep, err := a.Service.Recommend(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Matched) != 1 || rep.Matched[0].Record.Model != "Corolla" || rep.Summary != "Corolla it is." {
		t.Fatalf("report = %+v", rep)
	}

	stored, err := a.History.Get(context.Background(), rep.ID)
	if err != nil || len(stored.Matched) != 1 {
		t.Fatalf("history = %+v, %v", stored, err)
	}
}

func TestBuildMissingRegistryIsDataUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Registry.Path = filepath.Join(t.TempDir(), "nope.csv")
	a, err := Build(context.Background(), cfg, nil, WithGenerator(llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
		return "", errors.New("unused")
	})))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	rep, err := a.Service.Recommend(context.Background(), domain.UserQuery{BudgetMax: 1, YearMax: 2020, CCMax: 2000})
	if !errors.Is(err, domain.ErrDataUnavailable) || !rep.DataUnavailable {
		t.Fatalf("rep = %+v, err = %v", rep, err)
	}
}

func TestBuildRejectsUnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Provider = "palm"
	if _, err := Build(context.Background(), cfg, nil); err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Fatalf("err = %v", err)
	}
}

func TestPricingPolicyOverlay(t *testing.T) {
	cfg := config.Default()
	cfg.Pricing = config.PricingConfig{
		RefYear:  2024,
		Floor:    8000,
		Brackets: []config.BracketConfig{{UpToYear: 0, Rate: 0.12}},
	}
	p, ref := PricingPolicy(cfg)
	if ref != 2024 || p.Floor != 8000 || len(p.Brackets) != 1 || p.Brackets[0].Rate != 0.12 {
		t.Fatalf("policy = %+v, ref = %d", p, ref)
	}
	if p.Band != 0.10 {
		t.Fatal("unset band should keep the default")
	}
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}

	m := Matcher(cfg)
	if m.Lower != 0.13 || m.Upper != 0.13 {
		t.Fatalf("matcher = %+v", m)
	}
}

func TestGeneratorIsGuarded(t *testing.T) {
	c := config.Default().LLM
	gen, err := Generator(c, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := gen.(*llm.OllamaClient); ok {
		t.Fatal("breaker should wrap the client")
	}
	c.BreakerThreshold = 0
	gen, _ = Generator(c, nil)
	if _, ok := gen.(*llm.OllamaClient); !ok {
		t.Fatalf("got %T", gen)
	}
}
