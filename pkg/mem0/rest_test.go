package mem0

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/theapemachine/mem0-go/pkg/errors"
)

func TestRestClientAdd(t *testing.T) {
	Convey("Given a memory client and a test server", t, func() {
		var captured map[string]any

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&captured)
			fmt.Fprint(w, `{"results":[{"id":"m1","memory":"lives in Lisbon","event":"ADD"}]}`)
		}))
		defer ts.Close()

		client := NewRestClient(ts.URL)
		result, err := client.Add(context.Background(), AddRequest{
			Messages: []Message{{Role: "user", Content: "I live in Lisbon"}},
			Scope:    Scope{UserID: "u1"},
		})

		Convey("Then the add result should be parsed correctly", func() {
			So(err, ShouldBeNil)
			So(len(result.Results), ShouldEqual, 1)
			So(result.Results[0].Event, ShouldEqual, "ADD")
			So(captured["user_id"], ShouldEqual, "u1")
		})
	})
}

func TestRestClientSearch(t *testing.T) {
	Convey("Given a memory client and a test server for search", t, func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"results":[{"id":"1","memory":"a","score":0.9},{"memory_id":"2","text":"b","similarity":0.4}]}`)
		}))
		defer ts.Close()

		client := NewRestClient(ts.URL)
		records, err := client.Search(context.Background(), SearchRequest{
			Query: "anything",
			Scope: Scope{UserID: "u1"},
			Limit: 5,
		})

		Convey("Then alternate key names should be normalized", func() {
			So(err, ShouldBeNil)
			So(len(records), ShouldEqual, 2)
			So(records[0].Memory, ShouldEqual, "a")
			So(records[1].ID, ShouldEqual, "2")
			So(records[1].Memory, ShouldEqual, "b")
			So(records[1].Score, ShouldAlmostEqual, 0.4, 0.001)
		})
	})
}

func TestRestClientGetNotFound(t *testing.T) {
	Convey("Given a test server that answers 404", t, func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"detail":"Memory not found"}`)
		}))
		defer ts.Close()

		client := NewRestClient(ts.URL)
		record, err := client.Get(context.Background(), "gone")

		Convey("Then the error should classify as not found", func() {
			So(record, ShouldBeNil)
			So(err, ShouldNotBeNil)
			So(errors.IsNotFound(err), ShouldBeTrue)
		})
	})
}

func TestRestClientGetAllQuery(t *testing.T) {
	Convey("Given a client listing memories for a scope", t, func() {
		var gotQuery map[string][]string

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query()
			fmt.Fprint(w, `[{"id":"1","memory":"a"}]`)
		}))
		defer ts.Close()

		client := NewRestClient(ts.URL)
		records, err := client.GetAll(context.Background(), GetAllRequest{
			Scope: Scope{UserID: "u1", RunID: "r1"},
			Limit: 10,
		})

		Convey("Then the scope should travel as query parameters", func() {
			So(err, ShouldBeNil)
			So(len(records), ShouldEqual, 1)
			So(gotQuery["user_id"], ShouldResemble, []string{"u1"})
			So(gotQuery["run_id"], ShouldResemble, []string{"r1"})
			So(gotQuery["limit"], ShouldResemble, []string{"10"})
		})
	})
}

func TestRestClientConfiguresOnce(t *testing.T) {
	Convey("Given a client with a server config", t, func() {
		configures := 0

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/configure" {
				configures++
			}
			fmt.Fprint(w, `{"results":[]}`)
		}))
		defer ts.Close()

		client := NewRestClient(ts.URL, WithServerConfig([]byte(`{"version":"v1.1"}`)))

		_, err1 := client.Search(context.Background(), SearchRequest{Query: "a", Scope: Scope{UserID: "u1"}})
		_, err2 := client.Search(context.Background(), SearchRequest{Query: "b", Scope: Scope{UserID: "u1"}})

		Convey("Then configure should run exactly once across calls", func() {
			So(err1, ShouldBeNil)
			So(err2, ShouldBeNil)
			So(configures, ShouldEqual, 1)
		})
	})
}

func TestRestClientHistory(t *testing.T) {
	Convey("Given a test server with a change trail", t, func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[{"id":"h1","memory_id":"m1","old_memory":"","new_memory":"lives in Lisbon","event":"ADD"},{"id":"h2","memory_id":"m1","old_memory":"lives in Lisbon","new_memory":"lives in Porto","event":"UPDATE"}]`)
		}))
		defer ts.Close()

		client := NewRestClient(ts.URL)
		entries, err := client.History(context.Background(), "m1")

		Convey("Then the history should be returned in order", func() {
			So(err, ShouldBeNil)
			So(len(entries), ShouldEqual, 2)
			So(entries[0].Event, ShouldEqual, "ADD")
			So(entries[1].NewMemory, ShouldEqual, "lives in Porto")
		})
	})
}

func TestRestClientDeleteAll(t *testing.T) {
	Convey("Given a test server accepting a scope-wide delete", t, func() {
		var gotMethod, gotPath string

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod, gotPath = r.Method, r.URL.Path
			fmt.Fprint(w, `{"message":"ok"}`)
		}))
		defer ts.Close()

		client := NewRestClient(ts.URL)
		err := client.DeleteAll(context.Background(), Scope{AgentID: "a1"})

		Convey("Then the delete should target the memories collection", func() {
			So(err, ShouldBeNil)
			So(gotMethod, ShouldEqual, http.MethodDelete)
			So(gotPath, ShouldEqual, "/memories")
		})
	})
}
