package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hashicorp/go-hclog"
	multierror "github.com/hashicorp/go-multierror"
)

const (
	DefaultDynamoTable    = "Rockstar"
	DefaultDynamoAgeIndex = "RockstarAgeIndex"
	DefaultDynamoSeqTable = "Seq"

	// BatchWriteItem accepts at most 25 requests.
	dynamoBatchSize = 25

	// resend limit for UnprocessedItems of a single batch
	dynamoBatchAttempts = 5

	tableWaitTimeout = 2 * time.Minute
)

// DynamoDBAPI is the part of *dynamodb.Client the backend uses.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoBackend stores rockstars in a DynamoDB table keyed by Id.
// Age lookups go through a global secondary index hashed on Age
// and ranged on Id. Ids come from an atomic counter item kept in
// a separate sequence table.
type DynamoBackend struct {
	client DynamoDBAPI

	table    string
	ageIndex string
	seqTable string

	log hclog.Logger
}

type DynamoOptions struct {
	Table    string
	AgeIndex string
	SeqTable string
}

func NewDynamoBackend(client DynamoDBAPI, opts DynamoOptions, logger hclog.Logger) *DynamoBackend {
	if opts.Table == "" {
		opts.Table = DefaultDynamoTable
	}
	if opts.AgeIndex == "" {
		opts.AgeIndex = DefaultDynamoAgeIndex
	}
	if opts.SeqTable == "" {
		opts.SeqTable = DefaultDynamoSeqTable
	}

	return &DynamoBackend{
		client:   client,
		table:    opts.Table,
		ageIndex: opts.AgeIndex,
		seqTable: opts.SeqTable,
		log:      logger,
	}
}

// CreateTables creates the rockstar and sequence tables when they
// are missing and waits for them to become active.
func (b *DynamoBackend) CreateTables(ctx context.Context) error {
	tables := []*dynamodb.CreateTableInput{
		{
			TableName:   aws.String(b.table),
			BillingMode: dtypes.BillingModePayPerRequest,
			AttributeDefinitions: []dtypes.AttributeDefinition{
				{AttributeName: aws.String("Id"), AttributeType: dtypes.ScalarAttributeTypeN},
				{AttributeName: aws.String("Age"), AttributeType: dtypes.ScalarAttributeTypeN},
			},
			KeySchema: []dtypes.KeySchemaElement{
				{AttributeName: aws.String("Id"), KeyType: dtypes.KeyTypeHash},
			},
			GlobalSecondaryIndexes: []dtypes.GlobalSecondaryIndex{
				{
					IndexName: aws.String(b.ageIndex),
					KeySchema: []dtypes.KeySchemaElement{
						{AttributeName: aws.String("Age"), KeyType: dtypes.KeyTypeHash},
						{AttributeName: aws.String("Id"), KeyType: dtypes.KeyTypeRange},
					},
					Projection: &dtypes.Projection{
						ProjectionType: dtypes.ProjectionTypeInclude,
						NonKeyAttributes: []string{
							"FirstName", "LastName", "Alive",
						},
					},
				},
			},
		},
		{
			TableName:   aws.String(b.seqTable),
			BillingMode: dtypes.BillingModePayPerRequest,
			AttributeDefinitions: []dtypes.AttributeDefinition{
				{AttributeName: aws.String("Id"), AttributeType: dtypes.ScalarAttributeTypeS},
			},
			KeySchema: []dtypes.KeySchemaElement{
				{AttributeName: aws.String("Id"), KeyType: dtypes.KeyTypeHash},
			},
		},
	}

	for _, input := range tables {
		_, err := b.client.CreateTable(ctx, input)

		var inUse *dtypes.ResourceInUseException
		if errors.As(err, &inUse) {
			b.log.Debug("table already exists", "table", *input.TableName)
			continue
		}
		if err != nil {
			return fmt.Errorf("creating table %s: %w", *input.TableName, err)
		}

		b.log.Info("created table", "table", *input.TableName)

		waiter := dynamodb.NewTableExistsWaiter(b.client)
		err = waiter.Wait(ctx, &dynamodb.DescribeTableInput{
			TableName: input.TableName,
		}, tableWaitTimeout)
		if err != nil {
			return fmt.Errorf("waiting for table %s: %w", *input.TableName, err)
		}
	}

	return nil
}

func (b *DynamoBackend) Get(ctx context.Context, id int) (*Rockstar, error) {
	out, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.table),
		Key:            dynamoKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}

	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	r, err := rockstarFromItem(out.Item)
	if err != nil {
		return nil, err
	}

	return &r, nil
}

func (b *DynamoBackend) ScanAll(ctx context.Context) ([]Rockstar, error) {
	var res []Rockstar

	err := b.scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(b.table),
	}, func(out *dynamodb.ScanOutput) error {
		for _, item := range out.Items {
			r, err := rockstarFromItem(item)
			if err != nil {
				return err
			}
			res = append(res, r)
		}
		return nil
	})

	return res, err
}

func (b *DynamoBackend) ScanIDs(ctx context.Context) ([]int, error) {
	var ids []int

	err := b.scan(ctx, &dynamodb.ScanInput{
		TableName:            aws.String(b.table),
		ProjectionExpression: aws.String("Id"),
	}, func(out *dynamodb.ScanOutput) error {
		for _, item := range out.Items {
			id, err := numberAttr(item, "Id")
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})

	return ids, err
}

func (b *DynamoBackend) QueryByAge(ctx context.Context, age int) ([]Rockstar, error) {
	var (
		res   []Rockstar
		start map[string]dtypes.AttributeValue
	)

	for {
		out, err := b.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(b.table),
			IndexName:              aws.String(b.ageIndex),
			KeyConditionExpression: aws.String("Age = :age"),
			ExpressionAttributeValues: map[string]dtypes.AttributeValue{
				":age": numberValue(age),
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, err
		}

		for _, item := range out.Items {
			r, err := rockstarFromItem(item)
			if err != nil {
				return nil, err
			}
			res = append(res, r)
		}

		if len(out.LastEvaluatedKey) == 0 {
			return res, nil
		}
		start = out.LastEvaluatedKey
	}
}

func (b *DynamoBackend) Count(ctx context.Context) (int, error) {
	var n int

	err := b.scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(b.table),
		Select:    dtypes.SelectCount,
	}, func(out *dynamodb.ScanOutput) error {
		n += int(out.Count)
		return nil
	})

	return n, err
}

func (b *DynamoBackend) Put(ctx context.Context, r *Rockstar) error {
	if r.ID == 0 {
		id, err := b.nextID(ctx)
		if err != nil {
			return err
		}
		r.ID = id
	} else if err := b.bumpSeq(ctx, r.ID); err != nil {
		return err
	}

	_, err := b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(b.table),
		Item:      itemFromRockstar(*r),
	})
	return err
}

func (b *DynamoBackend) PutMany(ctx context.Context, rs []Rockstar) error {
	var maxID int
	for _, r := range rs {
		maxID = max(maxID, r.ID)
	}

	// the counter moves past explicit ids before any id is generated
	if maxID > 0 {
		if err := b.bumpSeq(ctx, maxID); err != nil {
			return err
		}
	}

	requests := make([]dtypes.WriteRequest, 0, len(rs))
	for _, r := range rs {
		if r.ID == 0 {
			id, err := b.nextID(ctx)
			if err != nil {
				return err
			}
			r.ID = id
		}

		requests = append(requests, dtypes.WriteRequest{
			PutRequest: &dtypes.PutRequest{Item: itemFromRockstar(r)},
		})
	}

	return b.batchWrite(ctx, requests)
}

func (b *DynamoBackend) DeleteMany(ctx context.Context, ids []int) error {
	requests := make([]dtypes.WriteRequest, 0, len(ids))
	for _, id := range ids {
		requests = append(requests, dtypes.WriteRequest{
			DeleteRequest: &dtypes.DeleteRequest{Key: dynamoKey(id)},
		})
	}

	return b.batchWrite(ctx, requests)
}

func (b *DynamoBackend) Close() error {
	return nil
}

func (b *DynamoBackend) scan(
	ctx context.Context,
	input *dynamodb.ScanInput,
	page func(*dynamodb.ScanOutput) error,
) error {
	for {
		out, err := b.client.Scan(ctx, input)
		if err != nil {
			return err
		}

		if err := page(out); err != nil {
			return err
		}

		if len(out.LastEvaluatedKey) == 0 {
			return nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// batchWrite sends requests in chunks of dynamoBatchSize. A failing
// chunk does not stop the others; all failures are returned together.
func (b *DynamoBackend) batchWrite(ctx context.Context, requests []dtypes.WriteRequest) error {
	var result *multierror.Error

	for start := 0; start < len(requests); start += dynamoBatchSize {
		end := min(start+dynamoBatchSize, len(requests))

		if err := b.writeChunk(ctx, requests[start:end]); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

func (b *DynamoBackend) writeChunk(ctx context.Context, chunk []dtypes.WriteRequest) error {
	pending := map[string][]dtypes.WriteRequest{
		b.table: chunk,
	}

	for attempt := 1; attempt <= dynamoBatchAttempts; attempt++ {
		out, err := b.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: pending,
		})
		if err != nil {
			return err
		}

		if len(out.UnprocessedItems[b.table]) == 0 {
			return nil
		}

		pending = out.UnprocessedItems
		b.log.Debug("resending unprocessed items",
			"count", len(pending[b.table]), "attempt", attempt)
	}

	return fmt.Errorf("%d items still unprocessed after %d attempts",
		len(pending[b.table]), dynamoBatchAttempts)
}

// nextID atomically increments the counter item of the table.
func (b *DynamoBackend) nextID(ctx context.Context) (int, error) {
	out, err := b.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(b.seqTable),
		Key:              b.seqKey(),
		UpdateExpression: aws.String("ADD #c :one"),
		ExpressionAttributeNames: map[string]string{
			"#c": "Counter",
		},
		ExpressionAttributeValues: map[string]dtypes.AttributeValue{
			":one": numberValue(1),
		},
		ReturnValues: dtypes.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("incrementing id counter: %w", err)
	}

	return numberAttr(out.Attributes, "Counter")
}

// bumpSeq moves the counter up to id so later generated ids do not
// collide with explicitly written ones. It never moves it down.
func (b *DynamoBackend) bumpSeq(ctx context.Context, id int) error {
	_, err := b.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(b.seqTable),
		Key:                 b.seqKey(),
		UpdateExpression:    aws.String("SET #c = :id"),
		ConditionExpression: aws.String("attribute_not_exists(#c) OR #c < :id"),
		ExpressionAttributeNames: map[string]string{
			"#c": "Counter",
		},
		ExpressionAttributeValues: map[string]dtypes.AttributeValue{
			":id": numberValue(id),
		},
	})

	var ccf *dtypes.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("advancing id counter: %w", err)
	}

	return nil
}

func (b *DynamoBackend) seqKey() map[string]dtypes.AttributeValue {
	return map[string]dtypes.AttributeValue{
		"Id": &dtypes.AttributeValueMemberS{Value: b.table},
	}
}

func dynamoKey(id int) map[string]dtypes.AttributeValue {
	return map[string]dtypes.AttributeValue{
		"Id": numberValue(id),
	}
}

func numberValue(n int) *dtypes.AttributeValueMemberN {
	return &dtypes.AttributeValueMemberN{Value: strconv.Itoa(n)}
}

func itemFromRockstar(r Rockstar) map[string]dtypes.AttributeValue {
	return map[string]dtypes.AttributeValue{
		"Id":        numberValue(r.ID),
		"FirstName": &dtypes.AttributeValueMemberS{Value: r.FirstName},
		"LastName":  &dtypes.AttributeValueMemberS{Value: r.LastName},
		"Age":       numberValue(r.Age),
		"Alive":     &dtypes.AttributeValueMemberBOOL{Value: r.Alive},
	}
}

func rockstarFromItem(item map[string]dtypes.AttributeValue) (Rockstar, error) {
	var (
		r   Rockstar
		err error
	)

	if r.ID, err = numberAttr(item, "Id"); err != nil {
		return Rockstar{}, err
	}
	if r.Age, err = numberAttr(item, "Age"); err != nil {
		return Rockstar{}, err
	}

	if v, ok := item["FirstName"].(*dtypes.AttributeValueMemberS); ok {
		r.FirstName = v.Value
	}
	if v, ok := item["LastName"].(*dtypes.AttributeValueMemberS); ok {
		r.LastName = v.Value
	}
	if v, ok := item["Alive"].(*dtypes.AttributeValueMemberBOOL); ok {
		r.Alive = v.Value
	}

	return r, nil
}

func numberAttr(item map[string]dtypes.AttributeValue, name string) (int, error) {
	v, ok := item[name].(*dtypes.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("attribute %s is missing or not a number", name)
	}

	n, err := strconv.Atoi(v.Value)
	if err != nil {
		return 0, fmt.Errorf("attribute %s: %w", name, err)
	}

	return n, nil
}
