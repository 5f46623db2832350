package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-identity-api/internal/domain"
)

// AccountRepo stores accounts in the accounts table. Email uniqueness is held
// by a companion item in the account_emails table, written in the same
// transaction as the account.
type AccountRepo struct {
	client      *dynamodb.Client
	tableName   string
	emailsTable string
	now         func() time.Time
}

func NewAccountRepo(client *dynamodb.Client, tables TableNames) *AccountRepo {
	return &AccountRepo{
		client:      client,
		tableName:   tables.Accounts,
		emailsTable: tables.AccountEmails,
		now:         time.Now,
	}
}

// TableNames names the tables AccountRepo touches.
type TableNames struct {
	Accounts      string
	AccountEmails string
}

const roleIndex = "role-index"

type emailItem struct {
	Email     string `dynamodbav:"email"`
	AccountID string `dynamodbav:"account_id"`
}

// Create inserts a new account. domain.ErrConflict when the email is taken.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	if a.Secrets == nil {
		a.Secrets = map[domain.Purpose]*domain.OneTimeSecret{}
	}
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	emailAV, err := attributevalue.MarshalMap(emailItem{Email: a.Email, AccountID: a.AccountID})
	if err != nil {
		return fmt.Errorf("marshal email index: %w", err)
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:                aws.String(r.emailsTable),
				Item:                     emailAV,
				ConditionExpression:      aws.String("attribute_not_exists(#e)"),
				ExpressionAttributeNames: map[string]string{"#e": fieldEmail},
			}},
			{Put: &types.Put{
				TableName:                aws.String(r.tableName),
				Item:                     item,
				ConditionExpression:      aws.String("attribute_not_exists(#id)"),
				ExpressionAttributeNames: map[string]string{"#id": fieldAccountID},
			}},
		},
	})
	if err != nil {
		if isTxConditionFailure(err) {
			return fmt.Errorf("email already registered: %w", domain.ErrConflict)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (r *AccountRepo) GetByID(ctx context.Context, accountID string) (*domain.Account, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldAccountID, accountID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, fmt.Errorf("unmarshal account: %w", err)
	}
	return &a, nil
}

// GetByEmail expects an already normalised email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.emailsTable),
		Key:            strKey(fieldEmail, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	var e emailItem
	if err := attributevalue.UnmarshalMap(out.Item, &e); err != nil {
		return nil, fmt.Errorf("unmarshal email index: %w", err)
	}
	return r.GetByID(ctx, e.AccountID)
}

// PutSecret overwrites the slot for s.Purpose, superseding any previous secret
// of that purpose in the same write.
func (r *AccountRepo) PutSecret(ctx context.Context, accountID string, s *domain.OneTimeSecret) error {
	b := newExprBuilder()
	if err := b.set(s, fieldSecrets, string(s.Purpose)); err != nil {
		return err
	}
	if err := b.set(r.now().UTC(), fieldUpdatedAt); err != nil {
		return err
	}
	b.when("attribute_exists(" + b.path(fieldAccountID) + ")")

	err := r.update(ctx, accountID, b)
	if isConditionFailure(err) {
		return fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	return err
}

// ConsumeSecret marks the purpose slot consumed and applies effect in one
// conditional write. The write only succeeds when the slot is live at now and
// its digest equals valueHash. A wrong digest on a live slot bumps its attempt
// counter; every failure yields domain.ErrInvalidSecret.
func (r *AccountRepo) ConsumeSecret(ctx context.Context, accountID string, purpose domain.Purpose, valueHash string, now time.Time, effect domain.AccountPatch) error {
	b := newExprBuilder()
	if err := consumeSecretExpr(b, purpose, valueHash, now, effect); err != nil {
		return err
	}
	err := r.update(ctx, accountID, b)
	if !isConditionFailure(err) {
		return err
	}

	miss := newExprBuilder()
	if err := failedAttemptExpr(miss, purpose, valueHash, now); err != nil {
		return err
	}
	if err := r.update(ctx, accountID, miss); err != nil && !isConditionFailure(err) {
		slog.Warn("could not record failed secret attempt", "account_id", accountID, "purpose", purpose, "err", err)
	}
	return fmt.Errorf("consume %s: %w", purpose, domain.ErrInvalidSecret)
}

// consumeSecretExpr retires the slot and applies effect, conditioned on the
// slot being live and matching valueHash.
func consumeSecretExpr(b *exprBuilder, purpose domain.Purpose, valueHash string, now time.Time, effect domain.AccountPatch) error {
	if err := setAccountPatch(b, effect); err != nil {
		return err
	}
	if err := b.set(attributevalue.UnixTime(now), fieldSecrets, string(purpose), fieldConsumedAt); err != nil {
		return err
	}
	if err := b.set(now.UTC(), fieldUpdatedAt); err != nil {
		return err
	}
	if err := whenSecretLive(b, purpose, now); err != nil {
		return err
	}
	hashVal, err := b.value(valueHash)
	if err != nil {
		return err
	}
	b.when(b.path(fieldSecrets, string(purpose), fieldValueHash) + " = " + hashVal)
	return nil
}

// failedAttemptExpr increments the attempt counter of a live slot whose
// digest differs from valueHash.
func failedAttemptExpr(b *exprBuilder, purpose domain.Purpose, valueHash string, now time.Time) error {
	if err := b.increment(fieldSecrets, string(purpose), fieldAttempts); err != nil {
		return err
	}
	if err := whenSecretLive(b, purpose, now); err != nil {
		return err
	}
	hashVal, err := b.value(valueHash)
	if err != nil {
		return err
	}
	b.when(b.path(fieldSecrets, string(purpose), fieldValueHash) + " <> " + hashVal)
	return nil
}

func whenSecretLive(b *exprBuilder, purpose domain.Purpose, now time.Time) error {
	nowVal, err := b.value(attributevalue.UnixTime(now))
	if err != nil {
		return err
	}
	maxVal, err := b.value(domain.MaxSecretAttempts)
	if err != nil {
		return err
	}
	b.when("attribute_exists(" + b.path(fieldSecrets, string(purpose)) + ")")
	b.when("attribute_not_exists(" + b.path(fieldSecrets, string(purpose), fieldConsumedAt) + ")")
	b.when(b.path(fieldSecrets, string(purpose), fieldExpiresAt) + " > " + nowVal)
	b.when(b.path(fieldSecrets, string(purpose), fieldAttempts) + " < " + maxVal)
	return nil
}

// SetCredential swaps the credential hash only if it still equals oldHash.
func (r *AccountRepo) SetCredential(ctx context.Context, accountID, oldHash, newHash string) error {
	b := newExprBuilder()
	if err := b.set(newHash, fieldCredentialHash); err != nil {
		return err
	}
	if err := b.set(r.now().UTC(), fieldUpdatedAt); err != nil {
		return err
	}
	oldVal, err := b.value(oldHash)
	if err != nil {
		return err
	}
	b.when(b.path(fieldCredentialHash) + " = " + oldVal)

	err = r.update(ctx, accountID, b)
	if isConditionFailure(err) {
		return fmt.Errorf("credential changed concurrently: %w", domain.ErrInvalidCredentials)
	}
	return err
}

// Patch applies account-level field changes. Removing the last active admin,
// by demotion or deactivation, fails with domain.ErrLastAdmin.
//
// The admin count and the write are separate requests, so two concurrent
// demotions of the final two admins can both pass the guard.
func (r *AccountRepo) Patch(ctx context.Context, accountID string, p domain.AccountPatch) error {
	if p.Empty() {
		return nil
	}
	if p.Role != nil || p.Active != nil {
		if err := r.guardLastAdmin(ctx, accountID, &p); err != nil {
			return err
		}
	}

	b := newExprBuilder()
	if err := setAccountPatch(b, p); err != nil {
		return err
	}
	if err := b.set(r.now().UTC(), fieldUpdatedAt); err != nil {
		return err
	}
	b.when("attribute_exists(" + b.path(fieldAccountID) + ")")

	err := r.update(ctx, accountID, b)
	if isConditionFailure(err) {
		return fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	return err
}

// UpdateProfile writes only the present fields of p and returns the stored account.
func (r *AccountRepo) UpdateProfile(ctx context.Context, accountID string, p domain.ProfilePatch) (*domain.Account, error) {
	if p.Empty() {
		return r.GetByID(ctx, accountID)
	}
	b := newExprBuilder()
	fields := []struct {
		set   bool
		name  string
		value interface{}
	}{
		{p.DisplayName.Set, fieldDisplayName, p.DisplayName.Value},
		{p.Phone.Set, fieldPhone, p.Phone.Value},
		{p.AvatarKey.Set, fieldAvatarKey, p.AvatarKey.Value},
		{p.Addresses.Set, fieldAddresses, append([]domain.Address{}, p.Addresses.Value...)},
	}
	for _, f := range fields {
		if !f.set {
			continue
		}
		if err := b.set(f.value, fieldProfile, f.name); err != nil {
			return nil, err
		}
	}
	if err := b.set(r.now().UTC(), fieldUpdatedAt); err != nil {
		return nil, err
	}
	b.when("attribute_exists(" + b.path(fieldAccountID) + ")")

	ue, err := b.update()
	if err != nil {
		return nil, err
	}
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldAccountID, accountID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       b.condition(),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailure(err) {
			return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
		}
		return nil, err
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Attributes, &a); err != nil {
		return nil, fmt.Errorf("unmarshal account: %w", err)
	}
	return &a, nil
}

// Delete removes the account and releases its email. Deleting the last
// active admin fails with domain.ErrLastAdmin.
func (r *AccountRepo) Delete(ctx context.Context, accountID string) error {
	a, err := r.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if a.IsActiveAdmin() {
		n, err := r.CountActiveAdmins(ctx)
		if err != nil {
			return err
		}
		if n <= 1 {
			return fmt.Errorf("delete %s: %w", accountID, domain.ErrLastAdmin)
		}
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName:                aws.String(r.tableName),
				Key:                      strKey(fieldAccountID, accountID),
				ConditionExpression:      aws.String("attribute_exists(#id)"),
				ExpressionAttributeNames: map[string]string{"#id": fieldAccountID},
			}},
			{Delete: &types.Delete{
				TableName: aws.String(r.emailsTable),
				Key:       strKey(fieldEmail, a.Email),
			}},
		},
	})
	if err != nil {
		if isTxConditionFailure(err) {
			return fmt.Errorf("account not found: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

// CountActiveAdmins queries role-index for admins and filters on active.
func (r *AccountRepo) CountActiveAdmins(ctx context.Context) (int, error) {
	b := newExprBuilder()
	role, err := b.value(domain.RoleAdmin)
	if err != nil {
		return 0, err
	}
	active, err := b.value(true)
	if err != nil {
		return 0, err
	}
	keyCond := b.path(fieldRole) + " = " + role
	b.when(b.path(fieldActive) + " = " + active)

	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(roleIndex),
		KeyConditionExpression:    aws.String(keyCond),
		FilterExpression:          b.condition(),
		ExpressionAttributeNames:  b.names,
		ExpressionAttributeValues: b.values,
		Select:                    types.SelectCount,
	})
	total := 0
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		total += int(page.Count)
	}
	return total, nil
}

// List scans all accounts matching f.
func (r *AccountRepo) List(ctx context.Context, f domain.ListFilter) ([]domain.Account, error) {
	b := newExprBuilder()
	if f.Role != nil {
		v, err := b.value(*f.Role)
		if err != nil {
			return nil, err
		}
		b.when(b.path(fieldRole) + " = " + v)
	}
	if f.Verified != nil {
		v, err := b.value(*f.Verified)
		if err != nil {
			return nil, err
		}
		b.when(b.path(fieldVerified) + " = " + v)
	}

	input := &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: b.condition(),
	}
	if len(b.names) > 0 {
		input.ExpressionAttributeNames = b.names
		input.ExpressionAttributeValues = b.valuesOrNil()
	}

	accounts := []domain.Account{}
	p := dynamodb.NewScanPaginator(r.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var batch []domain.Account
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal accounts: %w", err)
		}
		accounts = append(accounts, batch...)
	}
	return accounts, nil
}

func (r *AccountRepo) guardLastAdmin(ctx context.Context, accountID string, p *domain.AccountPatch) error {
	a, err := r.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !a.IsActiveAdmin() {
		return nil
	}
	after := *a
	p.Apply(&after)
	if after.IsActiveAdmin() {
		return nil
	}
	n, err := r.CountActiveAdmins(ctx)
	if err != nil {
		return err
	}
	if n <= 1 {
		return fmt.Errorf("patch %s: %w", accountID, domain.ErrLastAdmin)
	}
	return nil
}

func (r *AccountRepo) update(ctx context.Context, accountID string, b *exprBuilder) error {
	ue, err := b.update()
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldAccountID, accountID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       b.condition(),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

func setAccountPatch(b *exprBuilder, p domain.AccountPatch) error {
	if p.Verified != nil {
		if err := b.set(*p.Verified, fieldVerified); err != nil {
			return err
		}
	}
	if p.Active != nil {
		if err := b.set(*p.Active, fieldActive); err != nil {
			return err
		}
	}
	if p.Role != nil {
		if err := b.set(*p.Role, fieldRole); err != nil {
			return err
		}
	}
	if p.CredentialHash != nil {
		if err := b.set(*p.CredentialHash, fieldCredentialHash); err != nil {
			return err
		}
	}
	if p.LastLoginAt != nil {
		if err := b.set(p.LastLoginAt.UTC(), fieldLastLoginAt); err != nil {
			return err
		}
	}
	return nil
}

func isConditionFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func isTxConditionFailure(err error) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return false
	}
	for _, reason := range tce.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}
