// ABOUTME: Route 53 backend: lists the most specific record set and upserts single-value sets.
// ABOUTME: Uses the AWS SDK v2 default credential chain.

package dyndns53

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	r53types "github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/miekg/dns"
)

const route53ChangeComment = "dyndns53"

// route53API is the subset of the Route 53 client the backend calls.
type route53API interface {
	ListResourceRecordSets(ctx context.Context, in *route53.ListResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ListResourceRecordSetsOutput, error)
	ChangeResourceRecordSets(ctx context.Context, in *route53.ChangeResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error)
}

// Route53Backend implements Backend on top of Amazon Route 53. Zone IDs are
// hosted zone IDs.
type Route53Backend struct {
	client route53API
}

// NewRoute53Backend loads the default AWS configuration. An empty region
// defers to the environment.
func NewRoute53Backend(ctx context.Context, region string) (*Route53Backend, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &Route53Backend{client: route53.NewFromConfig(cfg)}, nil
}

// ListRecords implements Backend.
func (b *Route53Backend) ListRecords(ctx context.Context, zoneID, name string, typ RecordType, max int) ([]RecordSet, error) {
	out, err := b.client.ListResourceRecordSets(ctx, &route53.ListResourceRecordSetsInput{
		HostedZoneId:    aws.String(zoneID),
		StartRecordName: aws.String(name),
		StartRecordType: r53types.RRType(typ),
		MaxItems:        aws.Int32(int32(max)),
	})
	if err != nil {
		return nil, route53Error(zoneID, err)
	}

	sets := make([]RecordSet, 0, len(out.ResourceRecordSets))
	for _, rrs := range out.ResourceRecordSets {
		rs := RecordSet{
			Name: dns.CanonicalName(aws.ToString(rrs.Name)),
			Type: RecordType(rrs.Type),
			TTL:  uint32(aws.ToInt64(rrs.TTL)),
		}
		for _, rr := range rrs.ResourceRecords {
			rs.Values = append(rs.Values, aws.ToString(rr.Value))
		}
		sets = append(sets, rs)
	}
	return sets, nil
}

// UpsertRecord implements Backend.
func (b *Route53Backend) UpsertRecord(ctx context.Context, zoneID string, rs RecordSet) error {
	records := make([]r53types.ResourceRecord, len(rs.Values))
	for i, v := range rs.Values {
		records[i] = r53types.ResourceRecord{Value: aws.String(v)}
	}

	out, err := b.client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &r53types.ChangeBatch{
			Comment: aws.String(route53ChangeComment),
			Changes: []r53types.Change{{
				Action: r53types.ChangeActionUpsert,
				ResourceRecordSet: &r53types.ResourceRecordSet{
					Name:            aws.String(rs.Name),
					Type:            r53types.RRType(rs.Type),
					TTL:             aws.Int64(int64(rs.TTL)),
					ResourceRecords: records,
				},
			}},
		},
	})
	if err != nil {
		return route53Error(zoneID, err)
	}
	if out.ChangeInfo != nil {
		log.Debugf("route53 change %s for %s %s: %s", aws.ToString(out.ChangeInfo.Id), rs.Name, rs.Type, out.ChangeInfo.Status)
	}
	return nil
}

func route53Error(zoneID string, err error) error {
	var noZone *r53types.NoSuchHostedZone
	var badBatch *r53types.InvalidChangeBatch
	var badInput *r53types.InvalidInput
	switch {
	case errors.As(err, &noZone):
		return fmt.Errorf("route53: no such hosted zone %s: %w", zoneID, err)
	case errors.As(err, &badBatch):
		return fmt.Errorf("route53: invalid change batch for zone %s: %w", zoneID, err)
	case errors.As(err, &badInput):
		return fmt.Errorf("route53: invalid input for zone %s: %w", zoneID, err)
	default:
		return fmt.Errorf("route53: %w", err)
	}
}

var _ Backend = (*Route53Backend)(nil)
var _ Backend = (*Store)(nil)
