package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hitoshi/newshub/internal/model"
	"github.com/hitoshi/newshub/internal/newsclient"
)

// errFetchFailed はqueryで記事取得に失敗した場合のエラー。
var errFetchFailed = errors.New("Failed to fetch articles. Please try again later.")

// queryOptions はqueryサブコマンドのフラグ。
type queryOptions struct {
	server   string
	prefs    string
	remote   bool
	clientID string
	timeout  time.Duration
	more     int

	query    string
	category string
	sources  string
	fromDate string
	toDate   string

	setSources  string
	setCategory string

	// set はコマンドラインで明示的に指定されたフラグ名。
	set map[string]bool
}

func parseQueryFlags(args []string, stderr io.Writer) (*queryOptions, error) {
	opts := &queryOptions{set: map[string]bool{}}

	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.server, "server", defaultServerURL(), "APIサーバーのベースURL")
	fs.StringVar(&opts.prefs, "prefs", defaultPrefsPath(), "設定を保存するJSONファイル")
	fs.BoolVar(&opts.remote, "remote", false, "設定をサーバーのプリファレンスAPIに保存する")
	fs.StringVar(&opts.clientID, "client-id", "", "プリファレンスAPIのクライアントID（-remote時）")
	fs.DurationVar(&opts.timeout, "timeout", 30*time.Second, "1リクエストあたりのタイムアウト")
	fs.IntVar(&opts.more, "more", 0, "追加で読み込むページ数")
	fs.StringVar(&opts.query, "q", "", "検索キーワード")
	fs.StringVar(&opts.category, "category", "", "カテゴリ")
	fs.StringVar(&opts.sources, "sources", "", "カンマ区切りのプロバイダー（newsapi,guardian,nyt）")
	fs.StringVar(&opts.fromDate, "from", "", "開始日（YYYY-MM-DD）")
	fs.StringVar(&opts.toDate, "to", "", "終了日（YYYY-MM-DD）")
	fs.StringVar(&opts.setSources, "set-sources", "", "優先プロバイダーを保存する（カンマ区切り）")
	fs.StringVar(&opts.setCategory, "set-category", "", "優先カテゴリを保存する")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	if opts.more < 0 {
		return nil, fmt.Errorf("-more must be >= 0: %d", opts.more)
	}
	return opts, nil
}

// filterChange は明示的に指定されたフィルタ系フラグのみを含むFilterChangeを返す。
func (o *queryOptions) filterChange() (newsclient.FilterChange, bool) {
	var change newsclient.FilterChange
	changed := false
	if o.set["q"] {
		change.Query = &o.query
		changed = true
	}
	if o.set["category"] {
		change.Category = &o.category
		changed = true
	}
	if o.set["sources"] {
		sources := model.ParseSources(o.sources)
		if sources == nil {
			sources = []model.ProviderID{}
		}
		change.Sources = &sources
		changed = true
	}
	if o.set["from"] {
		change.FromDate = &o.fromDate
		changed = true
	}
	if o.set["to"] {
		change.ToDate = &o.toDate
		changed = true
	}
	return change, changed
}

// preferenceChange は保存する設定を返す。set-*が指定されていなければokはfalse。
func (o *queryOptions) preferenceChange() (newsclient.PreferenceChange, bool) {
	var change newsclient.PreferenceChange
	if !o.set["set-sources"] && !o.set["set-category"] {
		return change, false
	}
	if o.set["set-sources"] {
		sources := model.ParseSources(o.setSources)
		if sources == nil {
			sources = []model.ProviderID{}
		}
		change.Sources = &sources
	}
	if o.set["set-category"] {
		change.Category = &o.setCategory
	}
	return change, true
}

// queryPage はqueryの出力1ページ分。
type queryPage struct {
	Page     int             `json:"page"`
	Articles []model.Article `json:"articles"`
}

// runQuery は起動中のAPIサーバーから記事を取得し、ページごとにJSONで出力する。
// 保存済み設定でフィルタを初期化し、フラグで指定された条件を上書きする。
func runQuery(ctx context.Context, w io.Writer, args []string) error {
	opts, err := parseQueryFlags(args, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := newsclient.NewClient(opts.server, &http.Client{Timeout: opts.timeout})
	store := newQueryStore(client, opts)

	hook := newsclient.NewHook(client, nil)
	defer hook.Close()

	session := newsclient.NewSession(ctx, store, hook, slog.Default())

	if pref, ok := opts.preferenceChange(); ok {
		if err := session.ChangePreferences(ctx, pref); err != nil {
			return fmt.Errorf("failed to save preferences: %w", err)
		}
		if rs, ok := store.(*newsclient.RemoteStore); ok && opts.clientID == "" {
			slog.Info("preferences saved", slog.String("client_id", rs.ClientID()))
		}
	}
	if change, ok := opts.filterChange(); ok {
		session.ChangeFilter(change)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	for i := 0; ; i++ {
		if err := waitHook(ctx, hook); err != nil {
			return err
		}
		state := session.State()
		if state.IsError {
			return errFetchFailed
		}
		if err := enc.Encode(queryPage{Page: session.Filter().Page, Articles: state.Data}); err != nil {
			return fmt.Errorf("failed to write articles: %w", err)
		}
		if i >= opts.more {
			return nil
		}
		session.LoadMore()
	}
}

// waitHook はHookの取得完了を待つ。ctxがキャンセルされた場合はその時点で戻る。
func waitHook(ctx context.Context, hook *newsclient.Hook) error {
	done := make(chan struct{})
	go func() {
		hook.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newQueryStore(client *newsclient.Client, opts *queryOptions) newsclient.PreferenceStore {
	if opts.remote || opts.clientID != "" {
		return newsclient.NewRemoteStore(client, opts.clientID)
	}
	return newsclient.NewFileStore(opts.prefs)
}

func defaultServerURL() string {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	return "http://localhost:" + port
}

func defaultPrefsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".newshub-preferences.json"
	}
	return filepath.Join(dir, "newshub", "preferences.json")
}
