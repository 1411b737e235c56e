package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"assessment-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuizLoader fetches quiz content from a backing store (e.g., document DB).
type QuizLoader interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizRepository caches quizzes with TTL to avoid repeated DB hits. Misses are
// not cached so a newly published quiz is visible immediately.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuiz),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.cached(quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		if quiz, ok := r.cached(quizID); ok {
			return quiz, nil
		}
		quiz, err := r.loader.GetQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		if ttl := r.ttlWithJitter(); ttl > 0 {
			r.mu.Lock()
			r.cache[quizID] = cachedQuiz{quiz: quiz, expiresAt: r.clock().Add(ttl)}
			r.mu.Unlock()
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Invalidate drops a cached quiz, e.g. after it was edited or deleted.
func (r *QuizRepository) Invalidate(quizID string) {
	r.mu.Lock()
	delete(r.cache, quizID)
	r.mu.Unlock()
}

func (r *QuizRepository) cached(quizID string) (domain.Quiz, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[quizID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.Quiz{}, false
	}
	return entry.quiz, true
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuizzes is a mutable in-memory quiz source (useful for tests/demos).
type StaticQuizzes struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
}

func NewStaticQuizzes(quizzes ...domain.Quiz) *StaticQuizzes {
	s := &StaticQuizzes{quizzes: make(map[string]domain.Quiz, len(quizzes))}
	for _, q := range quizzes {
		s.quizzes[q.ID] = q
	}
	return s
}

func (s *StaticQuizzes) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if quiz, ok := s.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (s *StaticQuizzes) Put(quiz domain.Quiz) {
	s.mu.Lock()
	s.quizzes[quiz.ID] = quiz
	s.mu.Unlock()
}

func (s *StaticQuizzes) Delete(quizID string) {
	s.mu.Lock()
	delete(s.quizzes, quizID)
	s.mu.Unlock()
}

// StaticCatalog holds test series and enrolments in memory.
type StaticCatalog struct {
	mu          sync.RWMutex
	series      map[string]domain.TestSeries
	enrollments map[string]map[string]struct{}
}

func NewStaticCatalog(series ...domain.TestSeries) *StaticCatalog {
	c := &StaticCatalog{
		series:      make(map[string]domain.TestSeries, len(series)),
		enrollments: make(map[string]map[string]struct{}),
	}
	for _, ts := range series {
		c.series[ts.ID] = ts
	}
	return c
}

func (c *StaticCatalog) GetTestSeries(_ context.Context, seriesID string) (domain.TestSeries, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if ts, ok := c.series[seriesID]; ok {
		return ts, nil
	}
	return domain.TestSeries{}, domain.ErrTestSeriesNotFound
}

func (c *StaticCatalog) IsEnrolled(_ context.Context, seriesID, userID string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.enrollments[seriesID][userID]
	return ok, nil
}

// Enroll records a free or paid enrolment.
func (c *StaticCatalog) Enroll(seriesID, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	users, ok := c.enrollments[seriesID]
	if !ok {
		users = make(map[string]struct{})
		c.enrollments[seriesID] = users
	}
	users[userID] = struct{}{}
}
