package services

import (
	"context"
	"errors"
	"strings"

	"github.com/garba-app/apiserver/internal/events"
	"github.com/garba-app/apiserver/internal/store"
	"github.com/garba-app/apiserver/types"
)

// In-memory fakes backing the service tests.

type memImageRepo struct {
	images map[int64]types.UserImage
	nextID int64
}

func newMemImageRepo() *memImageRepo {
	return &memImageRepo{images: make(map[int64]types.UserImage), nextID: 1}
}

func (r *memImageRepo) Get(ctx context.Context, id int64) (types.UserImage, error) {
	image, ok := r.images[id]
	if !ok {
		return types.UserImage{}, store.ErrNotFound
	}
	return image, nil
}

func (r *memImageRepo) Create(ctx context.Context, image types.UserImage) (types.UserImage, error) {
	image.ID = r.nextID
	r.nextID++
	r.images[image.ID] = image
	return image, nil
}

func (r *memImageRepo) Touch(ctx context.Context, id int64) error {
	if _, ok := r.images[id]; !ok {
		return store.ErrNotFound
	}
	return nil
}

type memPayloads struct {
	objects map[string][]byte
	putErr  error
}

func newMemPayloads() *memPayloads {
	return &memPayloads{objects: make(map[string][]byte)}
}

func (p *memPayloads) PutBytes(ctx context.Context, key string, data []byte, contentType string) error {
	if p.putErr != nil {
		return p.putErr
	}
	p.objects[key] = append([]byte(nil), data...)
	return nil
}

func (p *memPayloads) GetBytes(ctx context.Context, key string) ([]byte, error) {
	data, ok := p.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (p *memPayloads) Delete(ctx context.Context, key string) error {
	delete(p.objects, key)
	return nil
}

type memUserRepo struct {
	users     map[int64]types.User
	nextID    int64
	imageRepo *memImageRepo
	createErr error
	updateErr error
}

func newMemUserRepo(imageRepo *memImageRepo) *memUserRepo {
	return &memUserRepo{
		users:     make(map[int64]types.User),
		nextID:    1,
		imageRepo: imageRepo,
	}
}

func (r *memUserRepo) GetByID(ctx context.Context, id int64) (types.User, error) {
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) GetByMobile(ctx context.Context, mobile string) (types.User, error) {
	for _, user := range r.users {
		if user.Mobile == mobile {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *memUserRepo) ExistsByMobile(ctx context.Context, mobile string) (bool, error) {
	_, err := r.GetByMobile(ctx, mobile)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *memUserRepo) CreateWithImage(ctx context.Context, user types.User, image *types.UserImage) (types.User, *types.UserImage, error) {
	if r.createErr != nil {
		return types.User{}, nil, r.createErr
	}
	user.ID = r.nextID
	r.nextID++
	user.Email = strings.ToLower(user.Email)

	if image != nil {
		image.UserID = user.ID
		created, err := r.imageRepo.Create(ctx, *image)
		if err != nil {
			return types.User{}, nil, err
		}
		*image = created
		user.ProfilePicID = &created.ID
	}

	r.users[user.ID] = user
	return user, image, nil
}

func (r *memUserRepo) Update(ctx context.Context, user types.User) (types.User, error) {
	if r.updateErr != nil {
		return types.User{}, r.updateErr
	}
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(r.users)), nil
}

func (r *memUserRepo) CountByPlan(ctx context.Context, plan string) (int64, error) {
	var total int64
	for _, user := range r.users {
		if user.PlanMode == plan {
			total++
		}
	}
	return total, nil
}

type publishedEvent struct {
	topic string
	event events.UserEvent
}

type memPublisher struct {
	published []publishedEvent
	err       error
}

func (p *memPublisher) PublishUserEvent(ctx context.Context, topic string, event events.UserEvent) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.published = append(p.published, publishedEvent{topic: topic, event: event})
	return "msg-1", nil
}
