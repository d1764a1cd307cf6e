package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"alfredoptarigan/hr-agent/internal/apperr"
	"alfredoptarigan/hr-agent/internal/models"
)

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[uint]*models.Job
	next uint
}

func newFakeJobRepo(jobs ...*models.Job) *fakeJobRepo {
	r := &fakeJobRepo{jobs: make(map[uint]*models.Job)}
	for _, j := range jobs {
		r.jobs[j.ID] = j
		if j.ID > r.next {
			r.next = j.ID
		}
	}
	return r
}

func (r *fakeJobRepo) Create(job *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	job.ID = r.next
	r.jobs[job.ID] = job
	return nil
}

func (r *fakeJobRepo) FindByID(id uint) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, apperr.NotFound("job %d", id)
	}
	return j, nil
}

func (r *fakeJobRepo) List() ([]models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Job
	for _, j := range r.jobs {
		out = append(out, *j)
	}
	return out, nil
}

func (r *fakeJobRepo) Delete(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return apperr.NotFound("job %d", id)
	}
	delete(r.jobs, id)
	return nil
}

type fakeCandidateRepo struct {
	mu         sync.Mutex
	candidates map[uint]*models.Candidate
	next       uint
}

func newFakeCandidateRepo(candidates ...*models.Candidate) *fakeCandidateRepo {
	r := &fakeCandidateRepo{candidates: make(map[uint]*models.Candidate)}
	for _, c := range candidates {
		r.candidates[c.ID] = c
		if c.ID > r.next {
			r.next = c.ID
		}
	}
	return r
}

func (r *fakeCandidateRepo) Create(c *models.Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	c.ID = r.next
	r.candidates[c.ID] = c
	return nil
}

func (r *fakeCandidateRepo) FindByID(id uint) (*models.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.candidates[id]
	if !ok {
		return nil, apperr.NotFound("candidate %d", id)
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCandidateRepo) FindByIDs(ids []uint) ([]models.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Candidate
	for _, id := range ids {
		if c, ok := r.candidates[id]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeCandidateRepo) FindByJob(jobID uint) ([]models.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Candidate
	for _, c := range r.candidates {
		if c.JobID == jobID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeCandidateRepo) CountByJob(jobID uint) (int64, error) {
	list, _ := r.FindByJob(jobID)
	return int64(len(list)), nil
}

func (r *fakeCandidateRepo) FindUnindexed(limit int) ([]models.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Candidate
	for _, c := range r.candidates {
		if c.VectorID == nil && c.ResumeText != "" {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeCandidateRepo) UpdateVectorID(id uint, vectorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.candidates[id]
	if !ok {
		return apperr.NotFound("candidate %d", id)
	}
	c.VectorID = &vectorID
	return nil
}

func (r *fakeCandidateRepo) Delete(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.candidates, id)
	return nil
}

type fakeEvalRepo struct {
	mu         sync.Mutex
	byCand     map[uint]*models.Evaluation
	candidates *fakeCandidateRepo
	next       uint
	upserts    int
}

func newFakeEvalRepo(candidates *fakeCandidateRepo) *fakeEvalRepo {
	return &fakeEvalRepo{byCand: make(map[uint]*models.Evaluation), candidates: candidates}
}

func (r *fakeEvalRepo) Upsert(eval *models.Evaluation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	if existing, ok := r.byCand[eval.CandidateID]; ok {
		eval.ID = existing.ID
		eval.CreatedAt = existing.CreatedAt
	} else {
		r.next++
		eval.ID = r.next
		eval.CreatedAt = time.Now()
	}
	eval.UpdatedAt = time.Now()
	cp := *eval
	r.byCand[eval.CandidateID] = &cp
	return nil
}

func (r *fakeEvalRepo) FindByCandidateID(candidateID uint) (*models.Evaluation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byCand[candidateID]
	if !ok {
		return nil, apperr.NotFound("evaluation for candidate %d", candidateID)
	}
	cp := *e
	return &cp, nil
}

func (r *fakeEvalRepo) FindByCandidateIDs(ids []uint) ([]models.Evaluation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Evaluation
	for _, id := range ids {
		if e, ok := r.byCand[id]; ok {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *fakeEvalRepo) FindByJob(jobID uint) ([]models.Evaluation, error) {
	candidates, _ := r.candidates.FindByJob(jobID)
	ids := make([]uint, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	out, _ := r.FindByCandidateIDs(ids)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OverallScore > out[j].OverallScore })
	return out, nil
}

func (r *fakeEvalRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byCand)
}

type fakeChatRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.ChatSession
	messages []models.ChatMessage
	nextID   uint
	touched  map[string]int
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{sessions: make(map[string]*models.ChatSession), touched: make(map[string]int)}
}

func (r *fakeChatRepo) FindSession(sessionID string) (*models.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, apperr.NotFound("chat session %s", sessionID)
	}
	cp := *s
	return &cp, nil
}

func (r *fakeChatRepo) CreateSession(session *models.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	session.ID = r.nextID
	session.CreatedAt = time.Now()
	session.UpdatedAt = session.CreatedAt
	cp := *session
	r.sessions[session.SessionID] = &cp
	return nil
}

func (r *fakeChatRepo) TouchSession(sessionID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		s.UpdatedAt = at
	}
	r.touched[sessionID]++
	return nil
}

func (r *fakeChatRepo) ListSessions(jobID *uint) ([]models.SessionSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.SessionSummary
	for _, s := range r.sessions {
		if jobID != nil && (s.JobID == nil || *s.JobID != *jobID) {
			continue
		}
		var count int64
		for _, m := range r.messages {
			if m.SessionID == s.SessionID {
				count++
			}
		}
		out = append(out, models.SessionSummary{SessionID: s.SessionID, JobID: s.JobID, CreatedAt: s.CreatedAt, MessageCount: count})
	}
	return out, nil
}

func (r *fakeChatRepo) AddMessage(message *models.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	message.ID = r.nextID
	message.CreatedAt = time.Now()
	r.messages = append(r.messages, *message)
	return nil
}

func (r *fakeChatRepo) ListMessages(sessionID string) ([]models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ChatMessage
	for _, m := range r.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

// fakeEmbedder returns registered vectors and a constant vector otherwise.
type fakeEmbedder struct {
	mu        sync.Mutex
	dimension int
	vectors   map[string][]float32
	err       error
	calls     []string
}

func newFakeEmbedder(dimension int) *fakeEmbedder {
	return &fakeEmbedder{dimension: dimension, vectors: make(map[string][]float32)}
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, text)
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	v := make([]float32, e.dimension)
	for i := range v {
		v[i] = 1
	}
	return v, nil
}

func (e *fakeEmbedder) Dimension() int {
	return e.dimension
}

// fakeLLM answers with the reply of the first rule whose key appears in the
// prompt, or pops the scripted replies in order.
type fakeLLM struct {
	mu      sync.Mutex
	rules   []llmRule
	script  []llmReply
	prompts []string
}

type llmRule struct {
	contains string
	reply    string
	err      error
}

type llmReply struct {
	reply string
	err   error
}

func (f *fakeLLM) on(contains, reply string) *fakeLLM {
	f.rules = append(f.rules, llmRule{contains: contains, reply: reply})
	return f
}

func (f *fakeLLM) onErr(contains string, err error) *fakeLLM {
	f.rules = append(f.rules, llmRule{contains: contains, err: err})
	return f
}

func (f *fakeLLM) then(reply string) *fakeLLM {
	f.script = append(f.script, llmReply{reply: reply})
	return f
}

func (f *fakeLLM) thenErr(err error) *fakeLLM {
	f.script = append(f.script, llmReply{err: err})
	return f
}

func (f *fakeLLM) GenerateJSON(_ context.Context, req CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, req.Prompt)

	for _, rule := range f.rules {
		if strings.Contains(req.Prompt, rule.contains) {
			return rule.reply, rule.err
		}
	}

	if len(f.script) == 0 {
		return "", errors.New("fakeLLM: no reply scripted")
	}
	next := f.script[0]
	if len(f.script) > 1 {
		f.script = f.script[1:]
	}
	return next.reply, next.err
}

func (f *fakeLLM) Name() string {
	return "fake"
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeLLM) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func strPtr(s string) *string {
	return &s
}

func uintPtr(v uint) *uint {
	return &v
}
