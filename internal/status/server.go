package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/feeds"

	"freshrss_filter/internal/model"
	"freshrss_filter/internal/storage"
)

const atomLimit = 50

// ReviewStore is the read side of the review store.
type ReviewStore interface {
	ListReviews(ctx context.Context, opts storage.ListOptions) ([]model.Review, error)
	CountReviews(ctx context.Context) (storage.Counts, error)
}

// Scheduler reports the next planned run.
type Scheduler interface {
	Next() time.Time
}

// Server exposes health, status and recent verdicts over HTTP.
type Server struct {
	state  *State
	store  ReviewStore
	sched  Scheduler
	log    *slog.Logger
	engine *gin.Engine
}

// NewServer builds the router. sched may be nil.
func NewServer(state *State, store ReviewStore, sched Scheduler, log *slog.Logger) *Server {
	s := &Server{
		state:  state,
		store:  store,
		sched:  sched,
		log:    log.With("component", "status"),
		engine: gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.engine.GET("/health", s.getHealth)
	s.engine.GET("/status", s.getStatus)
	s.engine.GET("/reviews", s.getReviews)
	s.engine.GET("/ads.atom", s.getAdsFeed)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("status server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown status server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

type summaryResponse struct {
	RunID         string    `json:"run_id"`
	Total         int       `json:"total"`
	SkippedExists int       `json:"skipped_exists"`
	Kept          int       `json:"kept"`
	MarkedRead    int       `json:"marked_read"`
	Labeled       int       `json:"labeled"`
	Deleted       int       `json:"deleted"`
	WouldAct      int       `json:"would_act"`
	Errors        int       `json:"errors"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Text          string    `json:"text"`
}

type statusResponse struct {
	Running bool             `json:"running"`
	RunID   string           `json:"run_id,omitempty"`
	Done    int              `json:"done"`
	Total   int              `json:"total"`
	LastRun *summaryResponse `json:"last_run"`
	NextRun *time.Time       `json:"next_run,omitempty"`
	Reviews countsResponse   `json:"reviews"`
}

type countsResponse struct {
	Total int `json:"total"`
	Ads   int `json:"ads"`
}

type reviewResponse struct {
	ItemID     string    `json:"item_id"`
	Title      string    `json:"title"`
	URL        string    `json:"url,omitempty"`
	IsAd       bool      `json:"is_ad"`
	Confidence float64   `json:"confidence"`
	Reason     string    `json:"reason"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getStatus(c *gin.Context) {
	snap := s.state.Snapshot()

	counts, err := s.store.CountReviews(c.Request.Context())
	if err != nil {
		s.log.Error("count reviews", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}

	res := statusResponse{
		Running: snap.Running,
		RunID:   snap.RunID,
		Done:    snap.Done,
		Total:   snap.Total,
		Reviews: countsResponse{Total: counts.Total, Ads: counts.Ads},
	}
	if snap.Last != nil {
		res.LastRun = toSummaryResponse(*snap.Last)
	}
	if s.sched != nil {
		next := s.sched.Next()
		res.NextRun = &next
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) getReviews(c *gin.Context) {
	opts := storage.ListOptions{AdsOnly: c.Query("ads") == "true"}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		opts.Limit = n
	}

	reviews, err := s.store.ListReviews(c.Request.Context(), opts)
	if err != nil {
		s.log.Error("list reviews", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}

	res := make([]reviewResponse, 0, len(reviews))
	for _, r := range reviews {
		res = append(res, reviewResponse{
			ItemID:     string(r.ItemID),
			Title:      r.Title,
			URL:        r.URL,
			IsAd:       r.IsAd,
			Confidence: r.Confidence,
			Reason:     r.Reason,
			ReviewedAt: r.ReviewedAt,
		})
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) getAdsFeed(c *gin.Context) {
	reviews, err := s.store.ListReviews(c.Request.Context(), storage.ListOptions{AdsOnly: true, Limit: atomLimit})
	if err != nil {
		s.log.Error("list ad reviews", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}

	atom, err := AdsFeed(reviews, "http://"+c.Request.Host+"/ads.atom").ToAtom()
	if err != nil {
		s.log.Error("render atom feed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feed error"})
		return
	}
	c.Data(http.StatusOK, "application/atom+xml; charset=utf-8", []byte(atom))
}

// AdsFeed builds a feed of ad verdicts, one entry per review.
func AdsFeed(reviews []model.Review, self string) *feeds.Feed {
	feed := &feeds.Feed{
		Title:       "freshrss-filter: filtered ads",
		Link:        &feeds.Link{Href: self},
		Description: "Items classified as advertisements",
		Id:          self,
		Created:     time.Now().UTC(),
	}
	for _, r := range reviews {
		if r.ReviewedAt.After(feed.Updated) {
			feed.Updated = r.ReviewedAt
		}
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          "freshrss-filter:review:" + string(r.ItemID),
			Title:       r.Title,
			Link:        &feeds.Link{Href: r.URL},
			Description: fmt.Sprintf("confidence %.2f: %s", r.Confidence, r.Reason),
			Created:     r.ReviewedAt,
		})
	}
	return feed
}

func toSummaryResponse(s model.RunSummary) *summaryResponse {
	return &summaryResponse{
		RunID:         s.RunID,
		Total:         s.Total,
		SkippedExists: s.SkippedExists,
		Kept:          s.Kept,
		MarkedRead:    s.MarkedRead,
		Labeled:       s.Labeled,
		Deleted:       s.Deleted,
		WouldAct:      s.WouldAct,
		Errors:        s.Errors,
		StartedAt:     s.StartedAt,
		FinishedAt:    s.FinishedAt,
		Text:          s.String(),
	}
}
