package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/uwamba/edms/internal/client"
	"github.com/uwamba/edms/internal/formengine"
)

var (
	firstNames = []string{"Alice", "Bob", "Charlie", "Diana", "Eve", "Frank", "Grace", "Hank", "Ivy", "Jack", "Karen", "Leo"}
	lastNames  = []string{"Smith", "Johnson", "Garcia", "Miller", "Davis", "Wilson", "Taylor", "Moore", "Martin", "Lee"}
	words      = []string{"annual", "urgent", "review", "travel", "budget", "contract", "renewal", "invoice", "client", "site", "visit", "quarterly"}
)

// fillAttempts bounds the passes over the tree; each pass sets one field.
const fillAttempts = 500

// generate fills every visible field of a fresh store with plausible random
// answers. Fields revealed by an earlier answer are filled on a later pass,
// and cascading options are read after their parents are set.
func generate(rng *rand.Rand, schema *formengine.Schema, seq int) (*formengine.Store, error) {
	store := formengine.NewStore(schema)
	tried := map[string]bool{}
	for i := 0; i < fillAttempts; i++ {
		next, done, err := fillOne(rng, store, store.Tree(), tried, seq)
		if err != nil {
			return nil, err
		}
		if done {
			return store, nil
		}
		store = next
	}
	return store, nil
}

// fillOne sets the first untried field in nodes. done reports that nothing
// was left to fill.
func fillOne(rng *rand.Rand, store *formengine.Store, nodes []*formengine.Node, tried map[string]bool, seq int) (*formengine.Store, bool, error) {
	for _, n := range nodes {
		key := n.Path.String()
		switch {
		case n.Field.Repeatable:
			if !tried[key] {
				tried[key] = true
				count := 1 + rng.Intn(3)
				next := store
				for j := 0; j < count; j++ {
					var err error
					if next, err = next.AddRepeatInstance(n.Path); err != nil {
						return nil, false, err
					}
				}
				return next, false, nil
			}
			for _, inst := range n.Instances {
				if next, done, err := fillOne(rng, store, inst, tried, seq); err != nil || !done {
					return next, done, err
				}
			}
		case n.Field.IsGroup():
			if next, done, err := fillOne(rng, store, n.Children, tried, seq); err != nil || !done {
				return next, done, err
			}
		default:
			if tried[key] || n.ReadOnly {
				continue
			}
			// A choice field with no options yet waits for its parent.
			v := randomValue(rng, n, seq)
			if v == nil {
				continue
			}
			tried[key] = true
			next, err := store.Set(n.Path, v)
			if err != nil {
				return nil, false, err
			}
			return next, false, nil
		}
	}
	return store, true, nil
}

func randomValue(rng *rand.Rand, n *formengine.Node, seq int) any {
	f := n.Field
	switch f.Type {
	case formengine.TypeText:
		if strings.Contains(strings.ToLower(f.Label), "name") {
			return firstNames[rng.Intn(len(firstNames))] + " " + lastNames[rng.Intn(len(lastNames))]
		}
		return padText(f, words[rng.Intn(len(words))]+" "+strconv.Itoa(seq))
	case formengine.TypeTextarea:
		parts := make([]string, 4+rng.Intn(8))
		for i := range parts {
			parts[i] = words[rng.Intn(len(words))]
		}
		return padText(f, strings.Join(parts, " "))
	case formengine.TypeNumber:
		lo, hi := bounds(f)
		if lo == math.Trunc(lo) && hi == math.Trunc(hi) {
			return lo + float64(rng.Intn(int(hi-lo)+1))
		}
		return lo + rng.Float64()*(hi-lo)
	case formengine.TypeDate:
		return fmt.Sprintf("%04d-%02d-%02d", 2020+rng.Intn(6), 1+rng.Intn(12), 1+rng.Intn(28))
	case formengine.TypeSelect, formengine.TypeRadio:
		if len(n.Options) == 0 {
			return nil
		}
		return n.Options[rng.Intn(len(n.Options))]
	case formengine.TypeMultiselect:
		if len(n.Options) == 0 {
			return nil
		}
		var picked []string
		for _, o := range n.Options {
			if rng.Intn(2) == 0 {
				picked = append(picked, o)
			}
		}
		if len(picked) == 0 {
			picked = []string{n.Options[0]}
		}
		return picked
	case formengine.TypeCheckbox:
		if f.Required {
			return true
		}
		return rng.Intn(2) == 0
	case formengine.TypeFile:
		name, ct := fileShape(f)
		return formengine.NewFile(name, ct, []byte(fmt.Sprintf("synthetic attachment %d\n", seq)))
	}
	return nil
}

// bounds reads the min and max rules of a number field, defaulting to 1..100.
func bounds(f *formengine.Field) (float64, float64) {
	lo, hi := 1.0, 100.0
	for _, r := range f.Validations {
		v, ok := operand(r.Operand)
		if !ok {
			continue
		}
		switch r.Kind {
		case formengine.RuleMin:
			lo = v
		case formengine.RuleMax:
			hi = v
		}
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func padText(f *formengine.Field, s string) string {
	for _, r := range f.Validations {
		if r.Kind != formengine.RuleTextLength {
			continue
		}
		if n, ok := operand(r.Operand); ok {
			for len([]rune(s)) < int(n) {
				s += " " + words[len(s)%len(words)]
			}
		}
	}
	return s
}

// fileShape picks a file name and content type that pass a fileType rule.
func fileShape(f *formengine.Field) (string, string) {
	for _, r := range f.Validations {
		allowed, _ := r.Operand.(string)
		if r.Kind != formengine.RuleFileType || allowed == "" {
			continue
		}
		first := strings.TrimSpace(strings.Split(allowed, ",")[0])
		switch {
		case strings.HasPrefix(first, "."):
			return "attachment" + first, "application/octet-stream"
		case strings.HasSuffix(first, "/*"):
			return "attachment", strings.TrimSuffix(first, "*") + "x-synthetic"
		case first != "":
			return "attachment", first
		}
	}
	return "attachment.txt", "text/plain"
}

func operand(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return n, err == nil
	}
	return 0, false
}

type loadStats struct {
	sent, invalid, rejected, failed atomic.Int64
}

func runLoad(ctx context.Context, raw []string) error {
	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	total := fs.Int("n", 100, "number of submissions")
	workers := fs.Int("workers", 4, "concurrent submitters")
	seed := fs.Int64("seed", time.Now().UnixNano(), "random seed")
	pos, err := args(fs, raw, 1)
	if err != nil {
		return err
	}
	if *total < 1 || *workers < 1 {
		return errors.New("load: -n and -workers must be positive")
	}
	formID := pos[0]

	c, err := connect(true)
	if err != nil {
		return err
	}
	schema, err := c.LoadForm(ctx, formID)
	if err != nil {
		return err
	}

	fmt.Printf("Form:        %s (%s)\n", schema.Form().Title, formID)
	fmt.Printf("Submissions: %d\n", *total)
	fmt.Printf("Workers:     %d\n\n", *workers)

	jobs := make(chan int)
	var stats loadStats
	var wg sync.WaitGroup
	start := time.Now()

	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(rng *rand.Rand) {
			defer wg.Done()
			for seq := range jobs {
				store, err := generate(rng, schema, seq)
				if err != nil {
					log.WithError(err).WithField("seq", seq).Warn("generate failed")
					stats.failed.Add(1)
					continue
				}
				_, err = c.SubmitStore(ctx, formID, store)
				_, local := formengine.AsValidationErrors(err)
				switch {
				case local:
					stats.invalid.Add(1)
					log.WithError(err).WithField("seq", seq).Debug("generated answers failed validation")
				case err == nil:
					stats.sent.Add(1)
				case isRejected(err):
					stats.rejected.Add(1)
					log.WithError(err).WithField("seq", seq).Debug("server rejected submission")
				default:
					stats.failed.Add(1)
					log.WithError(err).WithField("seq", seq).Warn("submit failed")
				}
			}
		}(rand.New(rand.NewSource(*seed + int64(w))))
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(3 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				progress(&stats, *total, start)
			}
		}
	}()

feed:
	for i := 0; i < *total; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(done)
	progress(&stats, *total, start)

	elapsed := time.Since(start)
	fmt.Println()
	fmt.Println("LOAD REPORT")
	fmt.Printf("  Sent:       %d\n", stats.sent.Load())
	fmt.Printf("  Invalid:    %d (failed local validation)\n", stats.invalid.Load())
	fmt.Printf("  Rejected:   %d (server 4xx)\n", stats.rejected.Load())
	fmt.Printf("  Failed:     %d\n", stats.failed.Load())
	fmt.Printf("  Time:       %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("  Throughput: %.1f submissions/s\n", float64(stats.sent.Load())/elapsed.Seconds())

	if err := ctx.Err(); err != nil {
		return err
	}
	if stats.failed.Load() > 0 {
		return fmt.Errorf("load: %d submission(s) failed", stats.failed.Load())
	}
	return nil
}

// isRejected reports a 4xx answer: the server understood the request and
// refused it.
func isRejected(err error) bool {
	var terr *client.TransportError
	return errors.As(err, &terr) && terr.StatusCode >= 400 && terr.StatusCode < 500
}

func progress(s *loadStats, total int, start time.Time) {
	done := s.sent.Load() + s.invalid.Load() + s.rejected.Load() + s.failed.Load()
	elapsed := time.Since(start)
	fmt.Printf("  %6d / %d  (%5.1f%%)  %7.1f/s  %s\n",
		done, total, float64(done)/float64(total)*100,
		float64(done)/elapsed.Seconds(), elapsed.Round(time.Millisecond))
}
