package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/giftlist/internal/gift"
	"github.com/five82/giftlist/internal/store"
)

// fakeTable evaluates the handful of expressions the store issues.
type fakeTable struct {
	mu       sync.Mutex
	items    map[string]item
	pageSize int
	scanErr  error
	scans    int
}

func newFakeTable(items ...item) *fakeTable {
	f := &fakeTable{items: make(map[string]item)}
	for _, it := range items {
		f.items[it.ID] = it
	}
	return f
}

func (f *fakeTable) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	want := in.ExpressionAttributeValues[":p"].(*dynamodbtypes.AttributeValueMemberBOOL).Value

	ids := make([]string, 0, len(f.items))
	for id := range f.items {
		ids = append(ids, id)
	}
	sortStrings(ids)

	startAfter := ""
	if in.ExclusiveStartKey != nil {
		startAfter = in.ExclusiveStartKey["id"].(*dynamodbtypes.AttributeValueMemberS).Value
	}
	out := &dynamodb.ScanOutput{}
	scanned := 0
	for _, id := range ids {
		if startAfter != "" && id <= startAfter {
			continue
		}
		if f.pageSize > 0 && scanned == f.pageSize {
			out.LastEvaluatedKey = key(ids[indexOf(ids, id)-1])
			break
		}
		scanned++
		it := f.items[id]
		if it.Purchased != want {
			continue
		}
		av, err := attributevalue.MarshalMap(it)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, av)
	}
	return out, nil
}

func (f *fakeTable) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := in.Key["id"].(*dynamodbtypes.AttributeValueMemberS).Value
	it, ok := f.items[id]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: av}, nil
}

func (f *fakeTable) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var it item
	if err := attributevalue.UnmarshalMap(in.Item, &it); err != nil {
		return nil, err
	}
	if _, exists := f.items[it.ID]; exists {
		return nil, &dynamodbtypes.ConditionalCheckFailedException{Message: aws.String("exists")}
	}
	f.items[it.ID] = it
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeTable) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	reasons := make([]dynamodbtypes.CancellationReason, len(in.TransactItems))
	failed := false
	for i, ti := range in.TransactItems {
		u := ti.Update
		id := u.Key["id"].(*dynamodbtypes.AttributeValueMemberS).Value
		it, ok := f.items[id]
		_, conditional := u.ExpressionAttributeValues[":unpurchased"]
		if !ok || (conditional && it.Purchased) {
			reasons[i].Code = aws.String("ConditionalCheckFailed")
			failed = true
			continue
		}
		reasons[i].Code = aws.String("None")
	}
	if failed {
		return nil, &dynamodbtypes.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}
	for _, ti := range in.TransactItems {
		u := ti.Update
		id := u.Key["id"].(*dynamodbtypes.AttributeValueMemberS).Value
		it := f.items[id]
		it.Purchased = u.ExpressionAttributeValues[":purchased"].(*dynamodbtypes.AttributeValueMemberBOOL).Value
		it.PurchaserName = u.ExpressionAttributeValues[":purchaser"].(*dynamodbtypes.AttributeValueMemberS).Value
		f.items[id] = it
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeTable) get(id string) item {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id]
}

func (f *fakeTable) failScans(err error) {
	f.mu.Lock()
	f.scanErr = err
	f.mu.Unlock()
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func registry() *fakeTable {
	return newFakeTable(
		item{ID: "g1", Name: "Blender", Image: "blender.png"},
		item{ID: "g2", Name: "Toaster", Image: "toaster.png"},
		item{ID: "g3", Name: "Lamp", Image: "lamp.png", Purchased: true, PurchaserName: "Bo"},
		item{ID: "g4", Name: "Kettle", Image: "kettle.png"},
	)
}

func TestScan_FiltersSortsAndPaginates(t *testing.T) {
	table := registry()
	table.pageSize = 1
	s := New(table, "gifts")

	gifts, err := s.scan(context.Background(), store.Unpurchased())
	require.NoError(t, err)

	names := make([]string, len(gifts))
	for i, g := range gifts {
		names[i] = g.Name
	}
	assert.Equal(t, []string{"Blender", "Kettle", "Toaster"}, names)
	assert.Equal(t, 4, table.scans)
}

func TestScan_EmptyTableYieldsEmptySlice(t *testing.T) {
	s := New(newFakeTable(), "gifts")

	gifts, err := s.scan(context.Background(), store.Unpurchased())
	require.NoError(t, err)
	assert.NotNil(t, gifts)
	assert.Empty(t, gifts)
}

func TestCommit_MarksGiftsPurchased(t *testing.T) {
	table := registry()
	s := New(table, "gifts")

	err := s.Commit(context.Background(), store.Batch{
		Updates: []store.Update{
			{ID: "g1", Purchased: true, PurchaserName: "Ana"},
			{ID: "g2", Purchased: true, PurchaserName: "Ana"},
		},
		RequireUnpurchased: true,
	})
	require.NoError(t, err)

	assert.True(t, table.get("g1").Purchased)
	assert.Equal(t, "Ana", table.get("g2").PurchaserName)
	assert.False(t, table.get("g4").Purchased)
}

func TestCommit_ConditionalReportsTakenAndWritesNothing(t *testing.T) {
	table := registry()
	s := New(table, "gifts")

	err := s.Commit(context.Background(), store.Batch{
		Updates: []store.Update{
			{ID: "g1", Purchased: true, PurchaserName: "Ana"},
			{ID: "g3", Purchased: true, PurchaserName: "Ana"},
		},
		RequireUnpurchased: true,
	})
	require.ErrorIs(t, err, store.ErrAlreadyPurchased)

	var taken *store.TakenError
	require.ErrorAs(t, err, &taken)
	assert.Equal(t, []string{"g3"}, taken.IDs)
	assert.False(t, table.get("g1").Purchased)
	assert.Equal(t, "Bo", table.get("g3").PurchaserName)
}

func TestCommit_UnconditionalOverwrites(t *testing.T) {
	table := registry()
	s := New(table, "gifts")

	err := s.Commit(context.Background(), store.Batch{
		Updates: []store.Update{{ID: "g3", Purchased: true, PurchaserName: "Ana"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana", table.get("g3").PurchaserName)
}

func TestCommit_UnknownGiftIsNotFound(t *testing.T) {
	table := registry()
	s := New(table, "gifts")

	err := s.Commit(context.Background(), store.Batch{
		Updates:            []store.Update{{ID: "g1", Purchased: true}, {ID: "nope", Purchased: true}},
		RequireUnpurchased: true,
	})
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.False(t, table.get("g1").Purchased)
}

func TestCommit_RejectsOversizedBatch(t *testing.T) {
	s := New(registry(), "gifts")

	updates := make([]store.Update, maxTransactItems+1)
	for i := range updates {
		updates[i] = store.Update{ID: fmt.Sprintf("g%d", i), Purchased: true}
	}
	err := s.Commit(context.Background(), store.Batch{Updates: updates})
	require.ErrorIs(t, err, store.ErrBatchTooLarge)
}

func TestBuildTransaction_Expressions(t *testing.T) {
	s := New(nil, "gifts")

	in := s.buildTransaction(store.Batch{
		Updates:            []store.Update{{ID: "g1", Purchased: true, PurchaserName: "Ana"}},
		RequireUnpurchased: true,
	})
	require.Len(t, in.TransactItems, 1)
	u := in.TransactItems[0].Update
	assert.Equal(t, "gifts", aws.ToString(u.TableName))
	assert.Equal(t, "SET purchased = :purchased, purchaserName = :purchaser", aws.ToString(u.UpdateExpression))
	assert.Equal(t, "attribute_exists(id) AND purchased = :unpurchased", aws.ToString(u.ConditionExpression))

	in = s.buildTransaction(store.Batch{Updates: []store.Update{{ID: "g1"}}})
	u = in.TransactItems[0].Update
	assert.Equal(t, "attribute_exists(id)", aws.ToString(u.ConditionExpression))
	_, ok := u.ExpressionAttributeValues[":unpurchased"]
	assert.False(t, ok)
}

func TestInsert_AssignsIDs(t *testing.T) {
	table := newFakeTable()
	s := New(table, "gifts")

	ids, err := s.Insert(context.Background(), []gift.Gift{{Name: "Mug"}, {Name: "Vase"}})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
	assert.Equal(t, "Mug", table.get(ids[0]).Name)
	assert.False(t, table.get(ids[1]).Purchased)
}

func TestSubscribe_DeliversChangesAndErrors(t *testing.T) {
	table := registry()
	s := New(table, "gifts", WithPollInterval(5*time.Millisecond))

	ch, cancel, err := s.Subscribe(context.Background(), store.Unpurchased())
	require.NoError(t, err)
	defer cancel()

	first := next(t, ch)
	require.NoError(t, first.Err)
	assert.Len(t, first.Gifts, 3)

	require.NoError(t, s.Commit(context.Background(), store.Batch{
		Updates:            []store.Update{{ID: "g4", Purchased: true, PurchaserName: "Ana"}},
		RequireUnpurchased: true,
	}))
	second := next(t, ch)
	require.NoError(t, second.Err)
	assert.Len(t, second.Gifts, 2)

	boom := errors.New("throttled")
	table.failScans(boom)
	assert.ErrorIs(t, next(t, ch).Err, boom)
}

func next(t *testing.T, ch <-chan store.Snapshot) store.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
		return store.Snapshot{}
	}
}
