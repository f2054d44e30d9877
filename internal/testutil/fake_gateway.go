package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dom/blueming-client/internal/domain"
	"github.com/go-chi/chi/v5"
)

// Gateway operation names, matching the gateway client's metric labels.
const (
	OpHistoryList     = "history.list"
	OpHistoryDelete   = "history.delete"
	OpModelsAvailable = "models.available"
	OpTrainingMine    = "training.mine"
	OpUserProfile     = "user.profile"
	OpUserUpdate      = "user.update"
	OpTestLogin       = "auth.test_login"
	OpModelsMine      = "models.mine"
	OpModelsLiked     = "models.liked"
	OpImage           = "image"
)

// FakeGateway is an in-memory stand-in for the Blueming REST API. It also
// serves image bytes under /images/ for download tests.
type FakeGateway struct {
	Server *httptest.Server

	mu             sync.Mutex
	history        []domain.GenerationHistory
	omitPageNumber bool
	models         []domain.AvailableModel
	trainingJobs   []domain.TrainingJob
	profile        *domain.UserProfile
	myModels       []domain.LoraModel
	likedModels    []domain.LoraModel
	loginResult    *domain.TestLoginResult
	images         map[string][]byte
	failures       map[string]int
	delays         map[string]time.Duration
	calls          map[string]int
	deleted        []int64
	lastAuth       string
	lastUpdate     *domain.ProfileUpdate
	lastImageQuery string
	historyGate    chan struct{}
	historyEntered chan struct{}
}

func NewFakeGateway(t *testing.T) *FakeGateway {
	t.Helper()

	f := &FakeGateway{
		images:   make(map[string][]byte),
		failures: make(map[string]int),
		delays:   make(map[string]time.Duration),
		calls:    make(map[string]int),
	}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/generate/history", f.handleHistoryList)
		r.Delete("/generate/history/{id}", f.handleHistoryDelete)
		r.Get("/generate/models", f.handleJSON(OpModelsAvailable, func() any { return f.models }))
		r.Get("/training/jobs/me", f.handleJSON(OpTrainingMine, func() any { return f.trainingJobs }))
		r.Get("/users/me", f.handleProfile)
		r.Patch("/users/me", f.handleProfileUpdate)
		r.Post("/auth/test-login", f.handleJSON(OpTestLogin, func() any { return f.loginResult }))
		r.Get("/models/me", f.handleModelsPage(OpModelsMine, func() []domain.LoraModel { return f.myModels }))
		r.Get("/community/models/liked", f.handleModelsPage(OpModelsLiked, func() []domain.LoraModel { return f.likedModels }))
	})
	r.Get("/images/{name}", f.handleImage)

	f.Server = httptest.NewServer(r)
	t.Cleanup(func() {
		f.ReleaseHistory()
		f.Server.Close()
	})
	return f
}

func (f *FakeGateway) URL() string {
	return f.Server.URL
}

// ImageURL is the fake's URL for an image registered with SetImage.
func (f *FakeGateway) ImageURL(name string) string {
	return f.Server.URL + "/images/" + name
}

func (f *FakeGateway) SetHistory(entries []domain.GenerationHistory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = entries
}

// OmitPageNumber makes history responses leave out "number".
func (f *FakeGateway) OmitPageNumber() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.omitPageNumber = true
}

func (f *FakeGateway) SetAvailableModels(models []domain.AvailableModel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models = models
}

func (f *FakeGateway) SetTrainingJobs(jobs []domain.TrainingJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trainingJobs = jobs
}

func (f *FakeGateway) SetProfile(p *domain.UserProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profile = p
}

func (f *FakeGateway) SetModels(mine, liked []domain.LoraModel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.myModels = mine
	f.likedModels = liked
}

func (f *FakeGateway) SetLoginResult(res *domain.TestLoginResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginResult = res
}

func (f *FakeGateway) SetImage(name string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[name] = data
}

// Fail makes op answer with status until cleared with status 0.
func (f *FakeGateway) Fail(op string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == 0 {
		delete(f.failures, op)
		return
	}
	f.failures[op] = status
}

// Delay makes model list requests for op answer only after d. A request
// whose context ends first gets no answer.
func (f *FakeGateway) Delay(op string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[op] = d
}

// HoldHistory makes history list requests block until ReleaseHistory.
// The returned channel receives once per request that reaches the hold.
func (f *FakeGateway) HoldHistory() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyGate = make(chan struct{})
	f.historyEntered = make(chan struct{}, 16)
	return f.historyEntered
}

func (f *FakeGateway) ReleaseHistory() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyGate != nil {
		close(f.historyGate)
		f.historyGate = nil
	}
}

func (f *FakeGateway) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FakeGateway) Deleted() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.deleted...)
}

// LastAuthorization is the Authorization header of the latest API call.
func (f *FakeGateway) LastAuthorization() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth
}

func (f *FakeGateway) LastProfileUpdate() *domain.ProfileUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastUpdate
}

func (f *FakeGateway) LastImageQuery() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastImageQuery
}

// enter records the call and reports a configured failure status (0 = none).
func (f *FakeGateway) enter(op string, r *http.Request) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if op != OpImage {
		f.lastAuth = r.Header.Get("Authorization")
	}
	return f.failures[op]
}

func (f *FakeGateway) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	if status := f.enter(OpHistoryList, r); status != 0 {
		http.Error(w, "history unavailable", status)
		return
	}

	f.mu.Lock()
	gate, entered := f.historyGate, f.historyEntered
	f.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size <= 0 {
		size = 20
	}

	f.mu.Lock()
	var filtered []domain.GenerationHistory
	modelFilter := r.URL.Query().Get("modelId")
	for _, h := range f.history {
		if modelFilter != "" && (h.ModelID == nil || strconv.FormatInt(*h.ModelID, 10) != modelFilter) {
			continue
		}
		filtered = append(filtered, h)
	}
	omit := f.omitPageNumber
	f.mu.Unlock()

	total := len(filtered)
	start := min(page*size, total)
	end := min(start+size, total)

	resp := domain.Page[domain.GenerationHistory]{
		Content:       append([]domain.GenerationHistory{}, filtered[start:end]...),
		TotalPages:    (total + size - 1) / size,
		TotalElements: int64(total),
		Size:          size,
	}
	if !omit {
		resp.Number = &page
	}
	writeJSON(w, resp)
}

func (f *FakeGateway) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	if status := f.enter(OpHistoryDelete, r); status != 0 {
		http.Error(w, "delete failed", status)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.deleted = append(f.deleted, id)
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeGateway) handleProfile(w http.ResponseWriter, r *http.Request) {
	if status := f.enter(OpUserProfile, r); status != 0 {
		http.Error(w, "profile unavailable", status)
		return
	}
	f.mu.Lock()
	p := f.profile
	f.mu.Unlock()
	if p == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, p)
}

func (f *FakeGateway) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	if status := f.enter(OpUserUpdate, r); status != 0 {
		http.Error(w, "update failed", status)
		return
	}
	var update domain.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.lastUpdate = &update
	var updated domain.UserProfile
	if f.profile != nil {
		updated = *f.profile
	}
	updated.Nickname = update.Nickname
	if update.ProfileImageURL != nil {
		updated.ProfileImageURL = *update.ProfileImageURL
	}
	f.profile = &updated
	f.mu.Unlock()

	writeJSON(w, updated)
}

func (f *FakeGateway) handleModelsPage(op string, get func() []domain.LoraModel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if status := f.enter(op, r); status != 0 {
			http.Error(w, "models unavailable", status)
			return
		}
		f.mu.Lock()
		delay := f.delays[op]
		f.mu.Unlock()
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		f.mu.Lock()
		models := append([]domain.LoraModel{}, get()...)
		f.mu.Unlock()
		page := 0
		writeJSON(w, domain.Page[domain.LoraModel]{
			Content:       models,
			Number:        &page,
			TotalPages:    1,
			TotalElements: int64(len(models)),
			Size:          len(models),
		})
	}
}

func (f *FakeGateway) handleJSON(op string, get func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if status := f.enter(op, r); status != 0 {
			http.Error(w, op+" failed", status)
			return
		}
		f.mu.Lock()
		v := get()
		f.mu.Unlock()
		writeJSON(w, v)
	}
}

func (f *FakeGateway) handleImage(w http.ResponseWriter, r *http.Request) {
	if status := f.enter(OpImage, r); status != 0 {
		http.Error(w, "image failed", status)
		return
	}
	name := chi.URLParam(r, "name")
	f.mu.Lock()
	f.lastImageQuery = r.URL.RawQuery
	data, ok := f.images[name]
	f.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	io.Copy(w, strings.NewReader(string(data)))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
