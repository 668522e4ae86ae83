package aws

import (
	"context"
	"errors"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecrets struct {
	values map[string]string
	calls  int
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	v, ok := f.values[sdkaws.ToString(in.SecretId)]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: sdkaws.String(v)}, nil
}

func TestSecretsClient_CachesValues(t *testing.T) {
	fake := &fakeSecrets{values: map[string]string{"listing/GITHUB_TOKEN": "ghp_x"}}
	sc := NewSecretsClientWithAPI(fake)

	for i := 0; i < 3; i++ {
		v, err := sc.GetSecret(context.Background(), "listing/GITHUB_TOKEN")
		require.NoError(t, err)
		assert.Equal(t, "ghp_x", v)
	}
	assert.Equal(t, 1, fake.calls)

	_, err := sc.GetSecret(context.Background(), "missing")
	assert.Error(t, err)
}

func TestSecretsClient_GetSecretMap(t *testing.T) {
	fake := &fakeSecrets{values: map[string]string{
		"listing/config": `{"MONGO_URI":"mongodb://db:27017"}`,
		"listing/bad":    `not json`,
	}}
	sc := NewSecretsClientWithAPI(fake)

	m, err := sc.GetSecretMap(context.Background(), "listing/config")
	require.NoError(t, err)
	assert.Equal(t, "mongodb://db:27017", m["MONGO_URI"])

	_, err = sc.GetSecretMap(context.Background(), "listing/bad")
	assert.Error(t, err)
}

type fakeSNS struct {
	inputs []*sns.PublishInput
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	return &sns.PublishOutput{MessageId: sdkaws.String("m-1")}, nil
}

func TestSNSClient_Publish(t *testing.T) {
	fake := &fakeSNS{}
	c := NewSNSClientWithAPI(fake)

	err := c.Publish(context.Background(), "arn:aws:sns:us-east-1:000000000000:listings", []byte(`{"id":"1"}`), map[string]string{"eventType": "listing.created"})
	require.NoError(t, err)
	require.Len(t, fake.inputs, 1)
	assert.Equal(t, `{"id":"1"}`, sdkaws.ToString(fake.inputs[0].Message))
	assert.Equal(t, "listing.created", sdkaws.ToString(fake.inputs[0].MessageAttributes["eventType"].StringValue))

	assert.Error(t, c.Publish(context.Background(), "", []byte("x"), nil))
}

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestMetricsClient(t *testing.T) {
	fake := &fakeCloudWatch{}
	disabled := NewMetricsClientWithAPI(fake, "", false)
	require.NoError(t, disabled.RecordCount(context.Background(), MetricListingsCreated, nil))
	assert.Empty(t, fake.inputs)

	enabled := NewMetricsClientWithAPI(fake, "", true)
	require.NoError(t, enabled.RecordCount(context.Background(), MetricListingsCreated, map[string]string{"Backend": "mongo"}))
	require.Len(t, fake.inputs, 1)
	assert.Equal(t, "ListingService", sdkaws.ToString(fake.inputs[0].Namespace))
	assert.Equal(t, MetricListingsCreated, sdkaws.ToString(fake.inputs[0].MetricData[0].MetricName))

	var nilClient *MetricsClient
	assert.NoError(t, nilClient.RecordCount(context.Background(), MetricListingsCreated, nil))
}

type fakeLogs struct {
	groupErr error
	events   int
}

func (f *fakeLogs) CreateLogGroup(context.Context, *cloudwatchlogs.CreateLogGroupInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	return &cloudwatchlogs.CreateLogGroupOutput{}, f.groupErr
}

func (f *fakeLogs) PutRetentionPolicy(context.Context, *cloudwatchlogs.PutRetentionPolicyInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error) {
	return &cloudwatchlogs.PutRetentionPolicyOutput{}, nil
}

func (f *fakeLogs) CreateLogStream(context.Context, *cloudwatchlogs.CreateLogStreamInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error) {
	return &cloudwatchlogs.CreateLogStreamOutput{}, nil
}

func (f *fakeLogs) PutLogEvents(_ context.Context, in *cloudwatchlogs.PutLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error) {
	f.events += len(in.LogEvents)
	return &cloudwatchlogs.PutLogEventsOutput{}, nil
}

func TestCloudWatchLogsClient_Write(t *testing.T) {
	fake := &fakeLogs{groupErr: &cwltypes.ResourceAlreadyExistsException{}}
	c, err := newCloudWatchLogsClient(context.Background(), fake, "", "listing-service", true)
	require.NoError(t, err)

	n, err := c.Write([]byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, 1, fake.events)

	off, err := newCloudWatchLogsClient(context.Background(), fake, "", "listing-service", false)
	require.NoError(t, err)
	_, _ = off.Write([]byte("dropped"))
	assert.Equal(t, 1, fake.events)
}
