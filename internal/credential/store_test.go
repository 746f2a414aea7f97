package credential

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sms-storage/internal/models"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
	"github.com/noah-isme/sms-storage/pkg/password"
)

type memoryRepo struct {
	cred    *models.AdminCredential
	saves   int
	loadErr error
}

func (r *memoryRepo) Load(context.Context) (*models.AdminCredential, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	if r.cred == nil {
		return nil, nil
	}
	c := *r.cred
	return &c, nil
}

func (r *memoryRepo) Save(_ context.Context, cred models.AdminCredential) error {
	r.saves++
	r.cred = &cred
	return nil
}

func newHasher(t *testing.T) *password.CompatHasher {
	t.Helper()
	h, err := password.New(password.AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func TestEnsureProvisionsHashedDefault(t *testing.T) {
	repo := &memoryRepo{}
	store := NewStore(repo, newHasher(t), "Elostaz@2025")

	created, err := store.Ensure(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, repo.cred)
	assert.True(t, repo.cred.IsHashed)
	assert.NotEqual(t, "Elostaz@2025", repo.cred.Password)
	assert.False(t, repo.cred.LastModified.IsZero())

	created, err = store.Ensure(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestEnsureAdoptsSeedDigest(t *testing.T) {
	digest, _ := password.SHA256Hasher{}.Hash("pw")
	repo := &memoryRepo{}
	store := NewStore(repo, newHasher(t), "Elostaz@2025")

	_, err := store.Ensure(context.Background(), digest)
	require.NoError(t, err)
	assert.Equal(t, digest, repo.cred.Password)
}

func TestUpgradeHashesPlaintext(t *testing.T) {
	repo := &memoryRepo{cred: &models.AdminCredential{Password: "Elostaz@2025"}}
	store := NewStore(repo, newHasher(t), "Elostaz@2025")

	changed, err := store.UpgradeIfNeeded(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, repo.cred.IsHashed)
	assert.NotEqual(t, "Elostaz@2025", repo.cred.Password)

	changed, err = store.UpgradeIfNeeded(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, store.Verify(context.Background(), "Elostaz@2025"))
}

func TestUpgradeStampsMissingLastModified(t *testing.T) {
	digest, _ := password.SHA256Hasher{}.Hash("pw")
	repo := &memoryRepo{cred: &models.AdminCredential{Password: digest, IsHashed: true}}
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewStore(repo, newHasher(t), "x", WithClock(func() time.Time { return fixed }))

	changed, err := store.UpgradeIfNeeded(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, fixed, repo.cred.LastModified)
	assert.Equal(t, digest, repo.cred.Password)
}

func TestVerifyRejectsWrongPassword(t *testing.T) {
	repo := &memoryRepo{}
	store := NewStore(repo, newHasher(t), "Elostaz@2025")

	err := store.Verify(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	err = store.Verify(context.Background(), "")
	assert.True(t, appErrors.HasCode(err, appErrors.CodeInvalidCredentials))
}

func TestVerifyRehashesLegacyDigest(t *testing.T) {
	digest, _ := password.SHA256Hasher{}.Hash("old-secret")
	repo := &memoryRepo{cred: &models.AdminCredential{Password: digest, IsHashed: true, LastModified: time.Now()}}
	var mirrored string
	store := NewStore(repo, newHasher(t), "x", OnChange(func(_ context.Context, d string) { mirrored = d }))

	require.NoError(t, store.Verify(context.Background(), "old-secret"))
	assert.True(t, password.BcryptHasher{}.IsHash(repo.cred.Password))
	assert.Equal(t, repo.cred.Password, mirrored)
}

func TestChangeStoresNewDigest(t *testing.T) {
	repo := &memoryRepo{}
	store := NewStore(repo, newHasher(t), "Elostaz@2025")

	digest, err := store.Change(context.Background(), "n3w-pass")
	require.NoError(t, err)
	assert.Equal(t, digest, repo.cred.Password)
	require.NoError(t, store.Verify(context.Background(), "n3w-pass"))
	assert.Error(t, store.Verify(context.Background(), "Elostaz@2025"))

	_, err = store.Change(context.Background(), "")
	assert.True(t, appErrors.HasCode(err, appErrors.CodeInvalidInput))
}

func TestRepositoryErrorsAreWrapped(t *testing.T) {
	repo := &memoryRepo{loadErr: errors.New("disk")}
	store := NewStore(repo, newHasher(t), "x")

	err := store.Verify(context.Background(), "x")
	assert.True(t, appErrors.HasCode(err, appErrors.CodeBackendError))

	repo.loadErr = appErrors.Connection(errors.New("offline"))
	err = store.Verify(context.Background(), "x")
	assert.True(t, appErrors.IsConnectionIssue(err))
}
