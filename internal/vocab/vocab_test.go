package vocab_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yomu-app/yomu/internal/deck"
	"github.com/yomu-app/yomu/internal/vocab"
)

func TestNewClient_Validation(t *testing.T) {
	t.Parallel()
	if _, err := vocab.NewClient("", "token"); err == nil {
		t.Error("empty baseURL accepted, want error")
	}
	if _, err := vocab.NewClient("https://example.com", ""); err == nil {
		t.Error("empty token accepted, want error")
	}
	if _, err := vocab.NewClient("https://example.com", "token"); err != nil {
		t.Errorf("valid arguments rejected: %v", err)
	}
}

func TestLoadItems(t *testing.T) {
	t.Parallel()

	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/subjects", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		// First page links to a second one to exercise pagination.
		if r.URL.Query().Get("page_after_id") == "" {
			fmt.Fprintf(w, `{
				"pages": {"next_url": %q},
				"data": [
					{"id": 1, "object": "vocabulary", "data": {
						"characters": "鞄", "level": 3,
						"meanings": [{"meaning": "bag", "primary": true}],
						"readings": [{"reading": "かばん", "primary": true}],
						"pronunciation_audios": [{"url": "https://cdn.example.com/1.mp3", "content_type": "audio/mpeg"}]
					}},
					{"id": 2, "object": "radical", "data": {"characters": "一"}}
				]
			}`, srv.URL+"/v2/subjects?types=vocabulary&page_after_id=2")
			return
		}
		fmt.Fprint(w, `{
			"pages": {"next_url": ""},
			"data": [
				{"id": 3, "object": "kana_vocabulary", "data": {
					"characters": "ねこ", "level": 1,
					"readings": [{"reading": "ねこ", "primary": true}]
				}}
			]
		}`)
	})
	mux.HandleFunc("/v2/assignments", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"pages": {"next_url": ""},
			"data": [
				{"id": 100, "data": {"subject_id": 1, "srs_stage": 5, "hidden": false}},
				{"id": 101, "data": {"subject_id": 3, "srs_stage": 2, "hidden": true}}
			]
		}`)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	client, err := vocab.NewClient(srv.URL, "test-token")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	items, err := client.LoadItems(context.Background())
	if err != nil {
		t.Fatalf("LoadItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2 (radical subject skipped)", len(items))
	}

	byID := map[int64]deck.Item{}
	for _, it := range items {
		byID[it.ID] = it
	}

	bag := byID[1]
	if bag.Text != "鞄" || bag.Level != 3 {
		t.Errorf("item 1 = %+v", bag)
	}
	if bag.Stage != 5 {
		t.Errorf("item 1 stage = %d, want 5", bag.Stage)
	}
	if len(bag.Readings) != 1 || bag.Readings[0].Value != "かばん" || !bag.Readings[0].Primary {
		t.Errorf("item 1 readings = %+v", bag.Readings)
	}
	if len(bag.Audio) != 1 || bag.Audio[0].ContentType != "audio/mpeg" {
		t.Errorf("item 1 audio = %+v", bag.Audio)
	}

	// Hidden assignment: stage stays unknown.
	cat := byID[3]
	if cat.Stage != deck.StageUnknown {
		t.Errorf("item 3 stage = %d, want StageUnknown", cat.Stage)
	}
}

func TestLoadItems_ErrorStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := vocab.NewClient(srv.URL, "bad-token")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.LoadItems(context.Background()); err == nil {
		t.Error("LoadItems succeeded against failing server, want error")
	}
}

func TestPing(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/user" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"data": {"username": "learner"}}`)
	}))
	defer srv.Close()

	client, err := vocab.NewClient(srv.URL, "test-token")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestMergeItems_UnknownKindAccepted(t *testing.T) {
	t.Parallel()
	// Subjects with an empty kind (older payloads) are kept.
	var s vocab.Subject
	s.ID = 9
	s.Data.Characters = "犬"
	items := vocab.MergeItems([]vocab.Subject{s}, nil)
	if len(items) != 1 {
		t.Fatalf("len = %d, want 1", len(items))
	}
	if items[0].Stage != deck.StageUnknown {
		t.Errorf("stage = %d, want StageUnknown", items[0].Stage)
	}
}
