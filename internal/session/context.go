package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/models"
)

// Context кэш сессии одного актора. Все изменения идут через apply под мьютексом,
// чтение возвращает копию. Logout и новый вход увеличивают generation, поэтому
// refresh, начатый раньше, не может вернуть прежнюю сессию.
type Context struct {
	actorID string
	store   Store
	logger  zerolog.Logger

	mu         sync.Mutex
	loaded     bool
	current    *models.Session
	generation uint64
}

func NewContext(actorID string, store Store, logger zerolog.Logger) *Context {
	return &Context{
		actorID: actorID,
		store:   store,
		logger:  logger.With().Str("actor_id", actorID).Logger(),
	}
}

type update struct {
	session    *models.Session // nil означает очистку
	generation uint64
	checkGen   bool
}

// Snapshot копия сессии вместе с поколением, в котором она прочитана.
type Snapshot struct {
	Session    models.Session
	Present    bool
	Generation uint64
}

// Read возвращает копию текущей сессии. При первом обращении запись читается из Store.
func (c *Context) Read(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		s, err := c.store.Load(ctx, c.actorID)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return Snapshot{Generation: c.generation}, err
		default:
			c.current = s
		}
		c.loaded = true
	}

	snap := Snapshot{Generation: c.generation}
	if c.current != nil {
		snap.Session = *c.current
		snap.Present = true
	}
	return snap, nil
}

func (c *Context) Current(ctx context.Context) (models.Session, bool, error) {
	snap, err := c.Read(ctx)
	return snap.Session, snap.Present, err
}

func (c *Context) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Establish сохраняет сессию после успешного входа и начинает новое поколение.
func (c *Context) Establish(ctx context.Context, s models.Session) error {
	_, err := c.apply(ctx, update{session: &s})
	return err
}

// Refresh сохраняет обновленную сессию, если с момента gen не было logout или входа.
func (c *Context) Refresh(ctx context.Context, gen uint64, s models.Session) (bool, error) {
	return c.apply(ctx, update{session: &s, generation: gen, checkGen: true})
}

// Clear удаляет сессию безусловно.
func (c *Context) Clear(ctx context.Context) error {
	_, err := c.apply(ctx, update{})
	return err
}

func (c *Context) apply(ctx context.Context, u update) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if u.checkGen && u.generation != c.generation {
		c.logger.Debug().
			Uint64("generation", u.generation).
			Uint64("current_generation", c.generation).
			Msg("Dropping stale session refresh")
		return false, nil
	}

	c.loaded = true

	if u.session == nil {
		c.generation++
		c.current = nil
		if err := c.store.Delete(ctx, c.actorID); err != nil {
			return true, fmt.Errorf("failed to delete stored session: %w", err)
		}
		return true, nil
	}

	if !u.checkGen {
		c.generation++
	}
	s := *u.session
	c.current = &s
	if err := c.store.Save(ctx, c.actorID, s); err != nil {
		return true, fmt.Errorf("failed to store session: %w", err)
	}
	return true, nil
}
