package generator

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"cosyq/internal/backend/memory"
)

// Config controls the shape of a generated annotation dump.
type Config struct {
	Projects     []string
	Count        int    // annotations per project
	Distribution string // "uniform" or "zipf": how users and corpora are picked
	Seed         int64
	Now          time.Time
}

var (
	users   = []string{"alice", "bob", "carla", "dmitri", "eun", "farid", "gosia", "hana"}
	corpora = []string{"brown", "sonar", "lassy", "cgn", "europarl"}
	queries = []string{`[pos="N.*"]`, `[lemma="walk"]`, `"the" [pos="ADJ"]`, `[word=".*ing"]`}
	keys    = map[string][]string{
		"pos":   {"N", "V", "ADJ", "ADV", "DET"},
		"lemma": {"walk", "house", "be", "have"},
		"error": {"spelling", "agreement", "word-order"},
	}
	keyNames = []string{"pos", "lemma", "error"}
)

// Generate builds Count annotations for every project. The same seed yields the same dump.
func Generate(cfg Config) map[string][]memory.Document {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	pick := func(n int) int { return rng.Intn(n) }
	if cfg.Distribution == "zipf" {
		// A handful of users and corpora produce most annotations.
		pick = func(n int) int {
			return int(rand.NewZipf(rng, 1.5, 1, uint64(n-1)).Uint64())
		}
	}

	out := make(map[string][]memory.Document, len(cfg.Projects))
	for _, project := range cfg.Projects {
		docs := make([]memory.Document, 0, cfg.Count)

		// Walk backwards from Now with Weibull-distributed gaps.
		t := cfg.Now
		for i := 0; i < cfg.Count; i++ {
			t = t.Add(-time.Duration(weibullSample(rng, 1.2, 6.0) * float64(time.Hour)))

			key := keyNames[pick(len(keyNames))]
			values := keys[key]
			annType := "token"
			if rng.Float64() < 0.25 {
				annType = "span"
			}

			docs = append(docs, memory.Document{
				"_id":       fmt.Sprintf("%s-%d", project, i+1),
				"user":      users[pick(len(users))],
				"corpus":    corpora[pick(len(corpora))],
				"query":     queries[rng.Intn(len(queries))],
				"type":      annType,
				"key":       key,
				"value":     values[rng.Intn(len(values))],
				"timestamp": t.UnixMilli(),
			})
		}
		out[project] = docs
	}
	return out
}

func weibullSample(rng *rand.Rand, k, lambda float64) float64 {
	u := rng.Float64()
	if u == 0 {
		u = 0.0001
	}
	// X = lambda * (-ln(1-u))^(1/k)
	return lambda * math.Pow(-math.Log(1.0-u), 1.0/k)
}

// Save writes one <project>.jsonl file per project into outDir.
func Save(outDir string, dump map[string][]memory.Document) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	store := memory.NewStore()
	for project, docs := range dump {
		store.Append(project, docs)
		if err := store.Save(outDir, project); err != nil {
			return err
		}
	}
	return nil
}
