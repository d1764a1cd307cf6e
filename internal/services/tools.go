package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"alfredoptarigan/hr-agent/internal/apperr"
	"alfredoptarigan/hr-agent/internal/models"
	"alfredoptarigan/hr-agent/internal/repositories"
)

type ToolName string

const (
	ToolSearchCandidates ToolName = "search_candidates"
	ToolGetJobDetails    ToolName = "get_job_details"
	ToolEvaluate         ToolName = "evaluate_candidate"
	ToolCompare          ToolName = "compare_candidates"
	ToolFilter           ToolName = "filter_candidates"
)

const (
	minCompareCandidates = 2
	maxCompareCandidates = 10
)

type ParamType string

const (
	ParamInteger     ParamType = "integer"
	ParamNumber      ParamType = "number"
	ParamString      ParamType = "string"
	ParamIntegerList ParamType = "integer[]"
	ParamStringList  ParamType = "string[]"
)

type ParamSpec struct {
	Name        string
	Type        ParamType
	Required    bool
	Default     any
	Description string
}

// ToolSpec is shown to the reasoning model and drives input validation.
type ToolSpec struct {
	Name        ToolName
	Description string
	Params      []ParamSpec
}

// ToolArgs holds validated arguments: integers as int, numbers as float64,
// lists as []int or []string.
type ToolArgs map[string]any

func (a ToolArgs) Int(name string) (int, bool) {
	v, ok := a[name].(int)
	return v, ok
}

func (a ToolArgs) Float(name string) (float64, bool) {
	v, ok := a[name].(float64)
	return v, ok
}

func (a ToolArgs) String(name string) string {
	v, _ := a[name].(string)
	return v
}

func (a ToolArgs) Ints(name string) []int {
	v, _ := a[name].([]int)
	return v
}

func (a ToolArgs) Strings(name string) []string {
	v, _ := a[name].([]string)
	return v
}

// ID reads a positive identifier argument.
func (a ToolArgs) ID(name string) (uint, error) {
	v, ok := a.Int(name)
	if !ok {
		return 0, apperr.Validation("%s is required", name)
	}
	if v <= 0 {
		return 0, apperr.Validation("%s must be a positive integer", name)
	}
	return uint(v), nil
}

// ValidateArgs checks input against the declared parameters, coerces values
// to their declared types and fills defaults. Unknown keys are ignored.
func ValidateArgs(spec ToolSpec, input map[string]any) (ToolArgs, error) {
	args := make(ToolArgs, len(spec.Params))

	for _, p := range spec.Params {
		raw, present := input[p.Name]
		if !present || raw == nil {
			if p.Required {
				return nil, apperr.Validation("%s: missing required parameter %s", spec.Name, p.Name)
			}
			if p.Default != nil {
				args[p.Name] = p.Default
			}
			continue
		}

		value, err := coerceParam(p.Type, raw)
		if err != nil {
			return nil, apperr.Validation("%s: parameter %s: %v", spec.Name, p.Name, err)
		}
		args[p.Name] = value
	}

	return args, nil
}

func coerceParam(t ParamType, raw any) (any, error) {
	switch t {
	case ParamInteger:
		return coerceInt(raw)
	case ParamNumber:
		f, ok := coerceFloat(raw)
		if !ok {
			return nil, fmt.Errorf("expected a number, got %v", raw)
		}
		return f, nil
	case ParamString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %v", raw)
		}
		return strings.TrimSpace(s), nil
	case ParamIntegerList:
		items, ok := raw.([]any)
		if !ok {
			if ints, isInts := raw.([]int); isInts {
				return ints, nil
			}
			n, err := coerceInt(raw)
			if err != nil {
				return nil, fmt.Errorf("expected a list of integers, got %v", raw)
			}
			return []int{n}, nil
		}
		ints := make([]int, 0, len(items))
		for _, item := range items {
			n, err := coerceInt(item)
			if err != nil {
				return nil, err
			}
			ints = append(ints, n)
		}
		return ints, nil
	case ParamStringList:
		switch list := raw.(type) {
		case []string:
			return list, nil
		case []any:
			return coerceStrings(list), nil
		case string:
			var items []string
			for _, part := range strings.Split(list, ",") {
				if part = strings.TrimSpace(part); part != "" {
					items = append(items, part)
				}
			}
			return items, nil
		default:
			return nil, fmt.Errorf("expected a list of strings, got %v", raw)
		}
	default:
		return nil, fmt.Errorf("unsupported parameter type %s", t)
	}
}

func coerceInt(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("expected an integer, got %v", v)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("expected an integer, got %v", v)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(v), "#"))
		if err != nil {
			return 0, fmt.Errorf("expected an integer, got %q", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected an integer, got %v", raw)
	}
}

// ToolInvoker is what the agent loop needs from a tool registry.
type ToolInvoker interface {
	Specs() []ToolSpec
	Spec(name string) (ToolSpec, bool)
	// Invoke validates input and runs the tool, returning indented JSON.
	Invoke(ctx context.Context, name string, input map[string]any) (string, error)
}

type toolHandler func(ctx context.Context, args ToolArgs) (any, error)

type toolRegistry struct {
	specs    []ToolSpec
	handlers map[ToolName]toolHandler

	jobRepo       repositories.JobRepository
	candidateRepo repositories.CandidateRepository
	evalRepo      repositories.EvaluationRepository
	embedder      EmbeddingProvider
	index         VectorIndex
	evaluator     EvaluatorService
	log           *zap.Logger
}

func NewToolRegistry(
	jobRepo repositories.JobRepository,
	candidateRepo repositories.CandidateRepository,
	evalRepo repositories.EvaluationRepository,
	embedder EmbeddingProvider,
	index VectorIndex,
	evaluator EvaluatorService,
	log *zap.Logger,
) ToolInvoker {
	r := &toolRegistry{
		jobRepo:       jobRepo,
		candidateRepo: candidateRepo,
		evalRepo:      evalRepo,
		embedder:      embedder,
		index:         index,
		evaluator:     evaluator,
		log:           log,
	}

	r.specs = []ToolSpec{
		{
			Name:        ToolSearchCandidates,
			Description: "Find candidates of a job by semantic similarity. Returns candidate ids, names and similarity scores.",
			Params: []ParamSpec{
				{Name: "job_id", Type: ParamInteger, Required: true, Description: "job to search candidates for"},
				{Name: "query", Type: ParamString, Description: "search text, defaults to the job description"},
				{Name: "top_k", Type: ParamInteger, Default: DefaultRetrievalTopK, Description: "number of matches, max 50"},
			},
		},
		{
			Name:        ToolGetJobDetails,
			Description: "Get the title and description of a job posting.",
			Params: []ParamSpec{
				{Name: "job_id", Type: ParamInteger, Required: true},
			},
		},
		{
			Name:        ToolEvaluate,
			Description: "Score one candidate against a job with the evaluation rubric and store the result.",
			Params: []ParamSpec{
				{Name: "candidate_id", Type: ParamInteger, Required: true},
				{Name: "job_id", Type: ParamInteger, Required: true},
			},
		},
		{
			Name:        ToolCompare,
			Description: "Compare 2 to 10 candidates side by side, ranked by overall score. Existing evaluations are reused.",
			Params: []ParamSpec{
				{Name: "candidate_ids", Type: ParamIntegerList, Required: true, Description: "2 to 10 candidate ids"},
				{Name: "job_id", Type: ParamInteger, Required: true},
			},
		},
		{
			Name:        ToolFilter,
			Description: "Filter already evaluated candidates of a job by score, skills or years of experience.",
			Params: []ParamSpec{
				{Name: "job_id", Type: ParamInteger, Required: true},
				{Name: "min_score", Type: ParamNumber, Description: "minimum overall score (0-100)"},
				{Name: "skills", Type: ParamStringList, Description: "skills that must all be present"},
				{Name: "min_experience", Type: ParamInteger, Description: "minimum years of experience"},
			},
		},
	}

	r.handlers = map[ToolName]toolHandler{
		ToolSearchCandidates: r.searchCandidates,
		ToolGetJobDetails:    r.getJobDetails,
		ToolEvaluate:         r.evaluateCandidate,
		ToolCompare:          r.compareCandidates,
		ToolFilter:           r.filterCandidates,
	}

	return r
}

func (r *toolRegistry) Specs() []ToolSpec {
	return r.specs
}

func (r *toolRegistry) Spec(name string) (ToolSpec, bool) {
	key := ToolName(strings.ToLower(strings.TrimSpace(name)))
	for _, spec := range r.specs {
		if spec.Name == key {
			return spec, true
		}
	}
	return ToolSpec{}, false
}

func (r *toolRegistry) Invoke(ctx context.Context, name string, input map[string]any) (result string, err error) {
	spec, ok := r.Spec(name)
	if !ok {
		return "", apperr.Validation("unknown tool %q", name)
	}

	args, err := ValidateArgs(spec, input)
	if err != nil {
		return "", err
	}

	defer func() {
		if p := recover(); p != nil {
			r.log.Error("💥 tool panicked", zap.String("tool", string(spec.Name)), zap.Any("panic", p))
			err = fmt.Errorf("tool %s failed unexpectedly: %v", spec.Name, p)
		}
	}()

	r.log.Info("🔧 Invoking tool", zap.String("tool", string(spec.Name)), zap.Any("args", map[string]any(args)))

	out, err := r.handlers[spec.Name](ctx, args)
	if err != nil {
		r.log.Warn("⚠️ tool failed", zap.String("tool", string(spec.Name)), zap.Error(err))
		return "", err
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode %s result: %w", spec.Name, err)
	}
	return string(b), nil
}

type searchMatch struct {
	CandidateID uint    `json:"candidate_id"`
	Name        string  `json:"name"`
	Email       *string `json:"email,omitempty"`
	Score       float64 `json:"score"`
}

type searchResult struct {
	JobID      uint          `json:"job_id"`
	JobTitle   string        `json:"job_title"`
	Candidates []searchMatch `json:"candidates"`
	Count      int           `json:"count"`
}

func (r *toolRegistry) searchCandidates(ctx context.Context, args ToolArgs) (any, error) {
	jobID, err := args.ID("job_id")
	if err != nil {
		return nil, err
	}

	job, err := r.jobRepo.FindByID(jobID)
	if err != nil {
		return nil, err
	}

	result := searchResult{JobID: job.ID, JobTitle: job.Title, Candidates: []searchMatch{}}

	topK, _ := args.Int("top_k")
	topK = ClampTopK(topK)
	if topK == 0 {
		return result, nil
	}

	query := args.String("query")
	if query == "" {
		query = job.Description
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed search query: %w", err)
	}

	matches, err := r.index.Query(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector index: %w", err)
	}

	ids := make([]uint, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.CandidateID)
	}

	found, err := r.candidateRepo.FindByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.Candidate, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}

	seen := make(map[uint]bool, len(matches))
	for _, m := range matches {
		c, ok := byID[m.CandidateID]
		if !ok || c.JobID != job.ID || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		result.Candidates = append(result.Candidates, searchMatch{
			CandidateID: c.ID,
			Name:        c.DisplayName(),
			Email:       c.Email,
			Score:       roundTo(float64(m.Score), 3),
		})
	}
	result.Count = len(result.Candidates)

	return result, nil
}

func (r *toolRegistry) getJobDetails(_ context.Context, args ToolArgs) (any, error) {
	jobID, err := args.ID("job_id")
	if err != nil {
		return nil, err
	}

	job, err := r.jobRepo.FindByID(jobID)
	if err != nil {
		return nil, err
	}

	count, err := r.candidateRepo.CountByJob(job.ID)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"job_id":          job.ID,
		"title":           job.Title,
		"description":     job.Description,
		"created_at":      job.CreatedAt,
		"candidate_count": count,
	}, nil
}

type candidateEvaluation struct {
	CandidateID     uint                  `json:"candidate_id"`
	CandidateName   string                `json:"candidate_name"`
	OverallScore    float64               `json:"overall_score"`
	TechnicalScore  float64               `json:"technical_score"`
	ExperienceScore float64               `json:"experience_score"`
	EducationScore  float64               `json:"education_score"`
	Recommendation  models.Recommendation `json:"recommendation"`
	Strengths       []string              `json:"strengths"`
	Concerns        []string              `json:"concerns"`
}

func newCandidateEvaluation(c *models.Candidate, e *models.Evaluation) candidateEvaluation {
	return candidateEvaluation{
		CandidateID:     c.ID,
		CandidateName:   c.DisplayName(),
		OverallScore:    e.OverallScore,
		TechnicalScore:  e.TechnicalScore,
		ExperienceScore: e.ExperienceScore,
		EducationScore:  e.EducationScore,
		Recommendation:  e.Recommendation,
		Strengths:       e.StrengthList(),
		Concerns:        e.ConcernList(),
	}
}

// resolveJobCandidate loads both entities and checks the candidate applied to the job.
func (r *toolRegistry) resolveJobCandidate(args ToolArgs) (*models.Job, *models.Candidate, error) {
	jobID, err := args.ID("job_id")
	if err != nil {
		return nil, nil, err
	}
	candidateID, err := args.ID("candidate_id")
	if err != nil {
		return nil, nil, err
	}

	job, err := r.jobRepo.FindByID(jobID)
	if err != nil {
		return nil, nil, err
	}
	candidate, err := r.candidateRepo.FindByID(candidateID)
	if err != nil {
		return nil, nil, err
	}
	if candidate.JobID != job.ID {
		return nil, nil, apperr.Validation("candidate %d did not apply to job %d", candidate.ID, job.ID)
	}

	return job, candidate, nil
}

func (r *toolRegistry) evaluateCandidate(ctx context.Context, args ToolArgs) (any, error) {
	job, candidate, err := r.resolveJobCandidate(args)
	if err != nil {
		return nil, err
	}

	eval, err := r.evaluator.EvaluateCandidate(ctx, job, candidate)
	if err != nil {
		return nil, err
	}

	return struct {
		candidateEvaluation
		JobID    uint   `json:"job_id"`
		JobTitle string `json:"job_title"`
	}{
		candidateEvaluation: newCandidateEvaluation(candidate, eval),
		JobID:               job.ID,
		JobTitle:            job.Title,
	}, nil
}

type compareResult struct {
	JobID       uint                      `json:"job_id"`
	JobTitle    string                    `json:"job_title"`
	Comparisons []candidateEvaluation     `json:"comparisons"`
	Failures    []models.CandidateFailure `json:"failures,omitempty"`
	Summary     string                    `json:"summary"`
}

func (r *toolRegistry) compareCandidates(ctx context.Context, args ToolArgs) (any, error) {
	ids := args.Ints("candidate_ids")
	if len(ids) < minCompareCandidates {
		return nil, apperr.Validation("need at least %d candidates to compare, got %d", minCompareCandidates, len(ids))
	}
	if len(ids) > maxCompareCandidates {
		ids = ids[:maxCompareCandidates]
	}

	jobID, err := args.ID("job_id")
	if err != nil {
		return nil, err
	}
	job, err := r.jobRepo.FindByID(jobID)
	if err != nil {
		return nil, err
	}

	requested := make([]uint, 0, len(ids))
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[uint(id)] {
			continue
		}
		seen[uint(id)] = true
		requested = append(requested, uint(id))
	}

	found, err := r.candidateRepo.FindByIDs(requested)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.Candidate, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}

	result := compareResult{JobID: job.ID, JobTitle: job.Title, Comparisons: []candidateEvaluation{}}

	for _, id := range requested {
		candidate, ok := byID[id]
		if !ok || candidate.JobID != job.ID {
			result.Failures = append(result.Failures, models.CandidateFailure{
				CandidateID: id,
				Reason:      fmt.Sprintf("candidate %d not found for job %d", id, job.ID),
			})
			continue
		}

		eval, _, err := r.evaluator.EnsureEvaluation(ctx, job, candidate)
		if err != nil {
			result.Failures = append(result.Failures, models.CandidateFailure{CandidateID: id, Reason: err.Error()})
			continue
		}
		result.Comparisons = append(result.Comparisons, newCandidateEvaluation(candidate, eval))
	}

	sort.SliceStable(result.Comparisons, func(i, j int) bool {
		a, b := result.Comparisons[i], result.Comparisons[j]
		if a.OverallScore != b.OverallScore {
			return a.OverallScore > b.OverallScore
		}
		return a.CandidateID < b.CandidateID
	})

	if len(result.Comparisons) == 0 {
		result.Summary = "No candidates could be compared."
	} else {
		top := result.Comparisons[0]
		result.Summary = fmt.Sprintf("Compared %d candidates. Top ranked: %s (Score: %.1f)",
			len(result.Comparisons), top.CandidateName, top.OverallScore)
	}

	return result, nil
}

var experienceYearsPattern = regexp.MustCompile(`(?i)(\d{1,2})\s*\+?\s*(?:years?|yrs?)`)

// EstimateExperienceYears returns the largest "N years" figure in text.
func EstimateExperienceYears(text string) (int, bool) {
	best, found := 0, false
	for _, m := range experienceYearsPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if !found || n > best {
			best, found = n, true
		}
	}
	return best, found
}

type filteredCandidate struct {
	CandidateID     uint                  `json:"candidate_id"`
	CandidateName   string                `json:"candidate_name"`
	OverallScore    float64               `json:"overall_score"`
	Recommendation  models.Recommendation `json:"recommendation"`
	ExperienceYears *int                  `json:"experience_years,omitempty"`
}

func (r *toolRegistry) filterCandidates(_ context.Context, args ToolArgs) (any, error) {
	jobID, err := args.ID("job_id")
	if err != nil {
		return nil, err
	}
	job, err := r.jobRepo.FindByID(jobID)
	if err != nil {
		return nil, err
	}

	candidates, err := r.candidateRepo.FindByJob(job.ID)
	if err != nil {
		return nil, err
	}
	evals, err := r.evalRepo.FindByJob(job.ID)
	if err != nil {
		return nil, err
	}
	evalByCandidate := make(map[uint]*models.Evaluation, len(evals))
	for i := range evals {
		evalByCandidate[evals[i].CandidateID] = &evals[i]
	}

	minScore, hasMinScore := args.Float("min_score")
	minExperience, hasMinExperience := args.Int("min_experience")
	skills := args.Strings("skills")

	matches := []filteredCandidate{}
	unevaluated := 0

	for i := range candidates {
		c := &candidates[i]
		eval, ok := evalByCandidate[c.ID]
		if !ok {
			unevaluated++
			continue
		}

		if hasMinScore && eval.OverallScore < minScore {
			continue
		}
		if len(skills) > 0 && !hasAllSkills(skills, c, eval) {
			continue
		}

		entry := filteredCandidate{
			CandidateID:    c.ID,
			CandidateName:  c.DisplayName(),
			OverallScore:   eval.OverallScore,
			Recommendation: eval.Recommendation,
		}
		if years, ok := EstimateExperienceYears(c.ResumeText); ok {
			entry.ExperienceYears = &years
		}
		if hasMinExperience && (entry.ExperienceYears == nil || *entry.ExperienceYears < minExperience) {
			continue
		}

		matches = append(matches, entry)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].OverallScore != matches[j].OverallScore {
			return matches[i].OverallScore > matches[j].OverallScore
		}
		return matches[i].CandidateID < matches[j].CandidateID
	})

	filters := map[string]any{}
	if hasMinScore {
		filters["min_score"] = minScore
	}
	if len(skills) > 0 {
		filters["skills"] = skills
	}
	if hasMinExperience {
		filters["min_experience"] = minExperience
	}

	return map[string]any{
		"job_id":      job.ID,
		"filters":     filters,
		"candidates":  matches,
		"count":       len(matches),
		"unevaluated": unevaluated,
	}, nil
}

func hasAllSkills(skills []string, c *models.Candidate, e *models.Evaluation) bool {
	haystack := strings.ToLower(strings.Join([]string{
		strings.Join(e.StrengthList(), "\n"),
		e.AIAnalysis,
		c.ResumeText,
	}, "\n"))

	for _, skill := range skills {
		if !strings.Contains(haystack, strings.ToLower(strings.TrimSpace(skill))) {
			return false
		}
	}
	return true
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
