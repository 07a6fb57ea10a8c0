package github

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"testing"

	"bluestar/internal/commit"
)

func subsetFacts() commit.Facts {
	return commit.Facts{
		SHA:     fullSHA,
		Message: "Speed up eviction (#7)\n\nRefs #12 and #12, see also #15 and #99",
		Files:   []commit.FileChange{{Path: "cache/lru.go"}},
	}
}

func subsetHandler(failIssues bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/acme/widgets/commits/" + fullSHA + "/pulls":
			fmt.Fprint(w, `[{"number":7,"title":"Faster eviction","body":"Users saw latency spikes.","html_url":"https://github.com/acme/widgets/pull/7"}]`)
		case "/repos/acme/widgets/commits":
			fmt.Fprintf(w, `[
				{"sha":%q,"commit":{"message":"self","author":{"name":"Ada","date":"2026-10-01T10:00:00Z"}}},
				{"sha":"b1","commit":{"message":"older","author":{"name":"Bob","date":"2026-09-01T10:00:00Z"}}},
				{"sha":"b2","commit":{"message":"newer","author":{"name":"Cy","date":"2026-09-20T10:00:00Z"}}}
			]`, fullSHA)
		case "/repos/acme/widgets/git/trees/" + fullSHA:
			fmt.Fprint(w, `{"tree":[{"path":"cache","type":"tree"},{"path":"go.mod","type":"blob"}]}`)
		default:
			if failIssues {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			var n int
			if _, err := fmt.Sscanf(r.URL.Path, "/repos/acme/widgets/issues/%d", &n); err == nil {
				fmt.Fprintf(w, `{"number":%d,"title":"Issue %d","state":"open"}`, n, n)
				return
			}
			http.NotFound(w, r)
		}
	}
}

func TestFetchSubsetsAll(t *testing.T) {
	client := newTestClient(t, subsetHandler(false))
	enh, err := client.FetchSubsets(context.Background(), testSubject(), subsetFacts(), commit.Subsets())
	if err != nil {
		t.Fatalf("FetchSubsets: %v", err)
	}
	if len(enh.RelatedChanges) != 1 || enh.RelatedChanges[0].Number != 7 {
		t.Fatalf("unexpected related changes %+v", enh.RelatedChanges)
	}
	if len(enh.RecentHistory) != 2 || enh.RecentHistory[0].SHA != "b2" {
		t.Fatalf("history should exclude the subject and sort newest first: %+v", enh.RecentHistory)
	}
	if !slices.Equal(enh.Structure, []string{"cache/", "go.mod"}) {
		t.Fatalf("unexpected structure %v", enh.Structure)
	}
	if len(enh.Issues) != 3 || enh.Issues[0].Number != 7 || enh.Issues[2].Number != 15 {
		t.Fatalf("unexpected issues %+v", enh.Issues)
	}
	if !slices.Equal(enh.Fetched, commit.Subsets()) || len(enh.Failed) != 0 {
		t.Fatalf("unexpected bookkeeping fetched=%v failed=%v", enh.Fetched, enh.Failed)
	}
}

func TestFetchSubsetsToleratesPartialFailure(t *testing.T) {
	client := newTestClient(t, subsetHandler(true))
	enh, err := client.FetchSubsets(context.Background(), testSubject(), subsetFacts(),
		[]commit.Subset{commit.SubsetIssueReference, commit.SubsetRelatedChange})
	if err == nil {
		t.Fatal("expected joined error for the failing subset")
	}
	if !slices.Equal(enh.Failed, []commit.Subset{commit.SubsetIssueReference}) {
		t.Fatalf("unexpected failed subsets %v", enh.Failed)
	}
	if !slices.Equal(enh.Fetched, []commit.Subset{commit.SubsetRelatedChange}) || len(enh.RelatedChanges) != 1 {
		t.Fatalf("successful subset lost: %+v", enh)
	}
}

func TestIssueReferences(t *testing.T) {
	got := IssueReferences("fix #3, refs #3 and #10; see org/repo#4 and #11 #12")
	if !slices.Equal(got, []int{3, 10, 11}) {
		t.Fatalf("unexpected references %v", got)
	}
}
