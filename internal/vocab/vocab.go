// Package vocab is the client for the vocabulary data source: a
// WaniKani-compatible REST API exposing vocabulary subjects (written form,
// meanings, kana readings, pronunciation audio) and a parallel assignment
// feed carrying per-subject SRS mastery stages.
//
// The client handles Bearer authentication and cursor pagination, fetches
// subjects and assignments concurrently, and merges the two feeds into
// [deck.Item] values. Hidden assignments are treated as absent — their
// subjects carry [deck.StageUnknown].
package vocab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yomu-app/yomu/internal/deck"
)

const requestTimeout = 30 * time.Second

// Subject is one vocabulary subject from the data source.
type Subject struct {
	ID   int64  `json:"id"`
	Kind string `json:"object"`
	Data struct {
		Characters string `json:"characters"`
		Level      int    `json:"level"`
		Meanings   []struct {
			Meaning string `json:"meaning"`
			Primary bool   `json:"primary"`
		} `json:"meanings"`
		Readings []struct {
			Reading string `json:"reading"`
			Primary bool   `json:"primary"`
		} `json:"readings"`
		PronunciationAudios []struct {
			URL         string `json:"url"`
			ContentType string `json:"content_type"`
		} `json:"pronunciation_audios"`
	} `json:"data"`
}

// Assignment is one SRS assignment from the data source.
type Assignment struct {
	ID   int64 `json:"id"`
	Data struct {
		SubjectID int64 `json:"subject_id"`
		SRSStage  int   `json:"srs_stage"`
		Hidden    bool  `json:"hidden"`
	} `json:"data"`
}

// page is the envelope shared by all collection endpoints.
type page struct {
	Pages struct {
		NextURL string `json:"next_url"`
	} `json:"pages"`
	Data []json.RawMessage `json:"data"`
}

// Client talks to the vocabulary API. Safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a Client for the API at baseURL (e.g.,
// "https://api.wanikani.com") authenticating with the given token.
func NewClient(baseURL, token string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("vocab: baseURL must not be empty")
	}
	if token == "" {
		return nil, errors.New("vocab: token must not be empty")
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
	}, nil
}

// LoadItems fetches vocabulary subjects and assignments concurrently and
// merges them into practice items.
func (c *Client) LoadItems(ctx context.Context) ([]deck.Item, error) {
	var (
		mu          sync.Mutex
		subjects    []Subject
		assignments []Assignment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		subs, err := c.Subjects(gctx)
		if err != nil {
			return err
		}
		mu.Lock()
		subjects = subs
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		asg, err := c.Assignments(gctx)
		if err != nil {
			return err
		}
		mu.Lock()
		assignments = asg
		mu.Unlock()
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return MergeItems(subjects, assignments), nil
}

// Subjects fetches all vocabulary subjects, following pagination.
func (c *Client) Subjects(ctx context.Context) ([]Subject, error) {
	var out []Subject
	err := c.collect(ctx, c.baseURL+"/v2/subjects?types=vocabulary", func(raw json.RawMessage) error {
		var s Subject
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vocab: fetch subjects: %w", err)
	}
	return out, nil
}

// Assignments fetches all vocabulary assignments, following pagination.
func (c *Client) Assignments(ctx context.Context) ([]Assignment, error) {
	var out []Assignment
	err := c.collect(ctx, c.baseURL+"/v2/assignments?subject_types=vocabulary", func(raw json.RawMessage) error {
		var a Assignment
		if err := json.Unmarshal(raw, &a); err != nil {
			return err
		}
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vocab: fetch assignments: %w", err)
	}
	return out, nil
}

// collect walks a paginated collection endpoint, invoking fn per element.
func (c *Client) collect(ctx context.Context, u string, fn func(json.RawMessage) error) error {
	for u != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("unexpected status %s for %s", resp.Status, u)
		}

		var p page
		err = json.NewDecoder(resp.Body).Decode(&p)
		resp.Body.Close()
		if err != nil {
			return err
		}
		for _, raw := range p.Data {
			if err := fn(raw); err != nil {
				return err
			}
		}
		u = p.Pages.NextURL
	}
	return nil
}

// Ping performs a cheap authenticated request, used as a readiness check.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/user", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("vocab: ping: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vocab: ping: unexpected status %s", resp.Status)
	}
	return nil
}

// MergeItems joins subjects with their assignments into practice items.
// Subjects of a non-vocabulary kind are skipped; subjects without an
// assignment (or with a hidden one) get [deck.StageUnknown].
func MergeItems(subjects []Subject, assignments []Assignment) []deck.Item {
	stages := make(map[int64]int, len(assignments))
	for _, a := range assignments {
		if a.Data.Hidden {
			continue
		}
		stages[a.Data.SubjectID] = a.Data.SRSStage
	}

	items := make([]deck.Item, 0, len(subjects))
	for _, s := range subjects {
		if s.Kind != "" && s.Kind != "vocabulary" && s.Kind != "kana_vocabulary" {
			continue
		}

		it := deck.Item{
			ID:    s.ID,
			Text:  s.Data.Characters,
			Level: s.Data.Level,
			Stage: deck.StageUnknown,
		}
		if stage, ok := stages[s.ID]; ok {
			it.Stage = stage
		}
		for _, m := range s.Data.Meanings {
			it.Meanings = append(it.Meanings, m.Meaning)
		}
		for _, r := range s.Data.Readings {
			it.Readings = append(it.Readings, deck.Reading{Value: r.Reading, Primary: r.Primary})
		}
		for _, a := range s.Data.PronunciationAudios {
			it.Audio = append(it.Audio, deck.Clip{URL: a.URL, ContentType: a.ContentType})
		}
		items = append(items, it)
	}
	return items
}
