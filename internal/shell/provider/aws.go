package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	smithy "github.com/aws/smithy-go"

	"github.com/artpar/novagate/internal/core/compute"
	"github.com/artpar/novagate/internal/core/flavor"
	"github.com/artpar/novagate/internal/core/guest"
	coreprovider "github.com/artpar/novagate/internal/core/provider"
)

const (
	awsManagedTag = "ManagedBy"
	awsFlavorTag  = "novagate:flavor"
	awsDomainTag  = "novagate:domain"
)

// AWSClient implements Client for AWS EC2 in a single region. Availability
// zones are the datacenters. Subnets have no numeric ids, so both VLAN
// listings are empty.
type AWSClient struct {
	client *ec2.Client
	region string
	logger *slog.Logger
}

// NewAWSClient creates an EC2 facade for one region.
func NewAWSClient(accessKeyID, secretAccessKey, region string, logger *slog.Logger) *AWSClient {
	return &AWSClient{
		client: ec2.New(ec2.Options{
			Region:      region,
			Credentials: credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		}),
		region: region,
		logger: logger.With("provider", coreprovider.TypeAWS, "region", region),
	}
}

// CreateInstance launches one EC2 instance from resolved parameters.
func (p *AWSClient) CreateInstance(ctx context.Context, params compute.ProvisioningParameters) (guest.Guest, error) {
	size, ok := coreprovider.MatchSize(coreprovider.TypeAWS, params.CPUs, params.MemoryMB)
	if !ok {
		return guest.Guest{}, p.fail("CreateInstance", fmt.Errorf("no instance type fits %d cpus and %d MB", params.CPUs, params.MemoryMB))
	}

	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(params.ImageRef),
		InstanceType: ec2types.InstanceType(size.ID),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		Placement:    &ec2types.Placement{AvailabilityZone: aws.String(params.Datacenter)},
		UserData:     aws.String(base64.StdEncoding.EncodeToString([]byte(params.UserData))),
		BlockDeviceMappings: []ec2types.BlockDeviceMapping{{
			DeviceName: aws.String("/dev/xvda"),
			Ebs:        &ec2types.EbsBlockDevice{VolumeSize: aws.Int32(int32(params.DiskGB)), DeleteOnTermination: aws.Bool(true)},
		}},
		TagSpecifications: []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeInstance,
			Tags: []ec2types.Tag{
				{Key: aws.String("Name"), Value: aws.String(params.Hostname)},
				{Key: aws.String(awsManagedTag), Value: aws.String(managedByValue)},
				{Key: aws.String(awsFlavorTag), Value: aws.String(params.FlavorID)},
				{Key: aws.String(awsDomainTag), Value: aws.String(params.Domain)},
			},
		}},
	}
	if len(params.SSHKeyIDs) > 0 {
		input.KeyName = aws.String(params.SSHKeyIDs[0])
	}
	if params.PrivateOnly != nil {
		input.NetworkInterfaces = []ec2types.InstanceNetworkInterfaceSpecification{{
			DeviceIndex:              aws.Int32(0),
			AssociatePublicIpAddress: aws.Bool(!*params.PrivateOnly),
		}}
	}

	out, err := p.client.RunInstances(ctx, input)
	if err != nil {
		return guest.Guest{}, p.fail("CreateInstance", err)
	}
	if len(out.Instances) == 0 {
		return guest.Guest{}, p.fail("CreateInstance", errors.New("no instance returned from RunInstances"))
	}

	inst := out.Instances[0]
	p.logger.Info("EC2 instance launched", "instance_id", aws.ToString(inst.InstanceId), "zone", params.Datacenter, "instance_type", size.ID)
	return p.toGuest(inst), nil
}

// ListInstances pages through instances tagged by the gateway.
func (p *AWSClient) ListInstances(ctx context.Context, filter ListFilter) ([]guest.Guest, error) {
	filters := []ec2types.Filter{
		{Name: aws.String("tag:" + awsManagedTag), Values: []string{managedByValue}},
		{Name: aws.String("instance-state-name"), Values: []string{"pending", "running", "stopping", "stopped"}},
	}
	if filter.Name != "" {
		filters = append(filters, ec2types.Filter{Name: aws.String("tag:Name"), Values: []string{filter.Name}})
	}
	if filter.Datacenter != "" {
		filters = append(filters, ec2types.Filter{Name: aws.String("availability-zone"), Values: []string{filter.Datacenter}})
	}

	out := make([]guest.Guest, 0)
	pager := ec2.NewDescribeInstancesPaginator(p.client, &ec2.DescribeInstancesInput{Filters: filters})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, p.fail("ListInstances", err)
		}
		for _, res := range page.Reservations {
			for _, inst := range res.Instances {
				out = append(out, p.toGuest(inst))
			}
		}
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return limit(out, filter.Limit), nil
}

// GetInstance fetches one instance.
func (p *AWSClient) GetInstance(ctx context.Context, id string) (guest.Guest, error) {
	inst, err := p.instance(ctx, "GetInstance", id)
	if err != nil {
		return guest.Guest{}, err
	}
	return p.toGuest(inst), nil
}

func (p *AWSClient) PowerOn(ctx context.Context, id string) error {
	_, err := p.client.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: []string{id}})
	return p.done("PowerOn", id, err)
}

func (p *AWSClient) PowerOff(ctx context.Context, id string) error {
	_, err := p.client.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{id}})
	return p.done("PowerOff", id, err)
}

func (p *AWSClient) RebootSoft(ctx context.Context, id string) error {
	_, err := p.client.RebootInstances(ctx, &ec2.RebootInstancesInput{InstanceIds: []string{id}})
	return p.done("RebootSoft", id, err)
}

// RebootHard uses the same EC2 reboot call; EC2 falls back to a hard reset
// itself when the guest does not shut down.
func (p *AWSClient) RebootHard(ctx context.Context, id string) error {
	_, err := p.client.RebootInstances(ctx, &ec2.RebootInstancesInput{InstanceIds: []string{id}})
	return p.done("RebootHard", id, err)
}

func (p *AWSClient) RebootDefault(ctx context.Context, id string) error {
	_, err := p.client.RebootInstances(ctx, &ec2.RebootInstancesInput{InstanceIds: []string{id}})
	return p.done("RebootDefault", id, err)
}

// Upgrade changes the instance type. EC2 only allows this on a stopped
// instance and reports the error otherwise.
func (p *AWSClient) Upgrade(ctx context.Context, id string, f flavor.Flavor) error {
	size, ok := coreprovider.MatchSize(coreprovider.TypeAWS, f.CPUs, f.MemoryMB)
	if !ok {
		return p.fail("Upgrade", fmt.Errorf("no instance type fits flavor %s", f.ID))
	}

	if _, err := p.client.ModifyInstanceAttribute(ctx, &ec2.ModifyInstanceAttributeInput{
		InstanceId:   aws.String(id),
		InstanceType: &ec2types.AttributeValue{Value: aws.String(size.ID)},
	}); err != nil {
		return p.fail("Upgrade", err)
	}

	if _, err := p.client.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{id},
		Tags:      []ec2types.Tag{{Key: aws.String(awsFlavorTag), Value: aws.String(f.ID)}},
	}); err != nil {
		p.logger.Warn("failed to record flavor tag", "instance_id", id, "error", err)
	}

	p.logger.Info("EC2 instance type changed", "instance_id", id, "instance_type", size.ID)
	return nil
}

// ConfirmResize only checks the instance exists.
func (p *AWSClient) ConfirmResize(ctx context.Context, id string) error {
	_, err := p.instance(ctx, "ConfirmResize", id)
	return err
}

// GetBlockDevices returns the instance's EBS mappings.
func (p *AWSClient) GetBlockDevices(ctx context.Context, id string) ([]guest.BlockDevice, error) {
	inst, err := p.instance(ctx, "GetBlockDevices", id)
	if err != nil {
		return nil, err
	}

	devices := make([]guest.BlockDevice, 0, len(inst.BlockDeviceMappings))
	for _, m := range inst.BlockDeviceMappings {
		d := guest.BlockDevice{Device: aws.ToString(m.DeviceName)}
		if m.Ebs != nil {
			d.ID = aws.ToString(m.Ebs.VolumeId)
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// CaptureArchive creates an AMI of the instance without rebooting. EC2
// images always cover every attached EBS volume.
func (p *AWSClient) CaptureArchive(ctx context.Context, id, name string, devices []guest.BlockDevice) error {
	input := &ec2.CreateImageInput{
		InstanceId: aws.String(id),
		Name:       aws.String(name),
		NoReboot:   aws.Bool(true),
		TagSpecifications: []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeImage,
			Tags: []ec2types.Tag{
				{Key: aws.String(awsManagedTag), Value: aws.String(managedByValue)},
				{Key: aws.String("novagate:disks"), Value: aws.String(strconv.Itoa(len(devices)))},
			},
		}},
	}

	out, err := p.client.CreateImage(ctx, input)
	if err != nil {
		return p.fail("CaptureArchive", err)
	}
	p.logger.Info("EC2 image creation started", "instance_id", id, "image_id", aws.ToString(out.ImageId), "name", name)
	return nil
}

// ListPrivateVLANs is always empty on EC2.
func (p *AWSClient) ListPrivateVLANs(context.Context, string) ([]int64, error) {
	return []int64{}, nil
}

// ListPublicVLANs is always empty on EC2.
func (p *AWSClient) ListPublicVLANs(context.Context, string) ([]int64, error) {
	return []int64{}, nil
}

// ListSSHKeys returns key pairs named name. EC2 launches by key name, so the
// name doubles as the key id.
func (p *AWSClient) ListSSHKeys(ctx context.Context, _ string, name string) ([]guest.SSHKey, error) {
	out, err := p.client.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{
		Filters: []ec2types.Filter{{Name: aws.String("key-name"), Values: []string{name}}},
	})
	if err != nil {
		return nil, p.fail("ListSSHKeys", err)
	}

	keys := make([]guest.SSHKey, 0, len(out.KeyPairs))
	for _, k := range out.KeyPairs {
		keys = append(keys, guest.SSHKey{
			ID:          aws.ToString(k.KeyName),
			Label:       aws.ToString(k.KeyName),
			Fingerprint: aws.ToString(k.KeyFingerprint),
		})
	}
	return keys, nil
}

// =============================================================================
// Helpers
// =============================================================================

func (p *AWSClient) instance(ctx context.Context, op, id string) (ec2types.Instance, error) {
	out, err := p.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}})
	if err != nil {
		return ec2types.Instance{}, p.fail(op, err)
	}
	for _, res := range out.Reservations {
		for _, inst := range res.Instances {
			if inst.State != nil && inst.State.Name == ec2types.InstanceStateNameTerminated {
				continue
			}
			return inst, nil
		}
	}
	return ec2types.Instance{}, ErrNotFound
}

func (p *AWSClient) done(op, id string, err error) error {
	if err != nil {
		return p.fail(op, err)
	}
	p.logger.Info("EC2 instance action started", "instance_id", id, "op", op)
	return nil
}

// fail converts a vendor error into the facade's error types.
func (p *AWSClient) fail(op string, err error) error {
	pErr := &Error{Provider: coreprovider.TypeAWS, Op: op, Message: err.Error(), Err: err}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InvalidInstanceID.NotFound", "InvalidInstanceID.Malformed":
			return ErrNotFound
		case "RequestLimitExceeded", "Throttling", "InternalError", "Unavailable", "ServiceUnavailable":
			pErr.Retryable = true
		}
		pErr.Message = apiErr.ErrorMessage()
	}

	p.logger.Warn("EC2 call failed", "op", op, "error", err)
	return pErr
}

func (p *AWSClient) toGuest(inst ec2types.Instance) guest.Guest {
	tags := make(map[string]string, len(inst.Tags))
	for _, t := range inst.Tags {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}

	g := guest.Guest{
		ID:                      aws.ToString(inst.InstanceId),
		Hostname:                tags["Name"],
		Domain:                  tags[awsDomainTag],
		PrimaryIPAddress:        aws.ToString(inst.PublicIpAddress),
		PrimaryBackendIPAddress: aws.ToString(inst.PrivateIpAddress),
		PrimaryIPv6Address:      aws.ToString(inst.Ipv6Address),
		ImageName:               aws.ToString(inst.ImageId),
	}
	g.FullyQualifiedDomainName = fqdn(g.Hostname, g.Domain)

	if size, ok := coreprovider.LookupSize(coreprovider.TypeAWS, string(inst.InstanceType)); ok {
		g.StartCPUs = size.CPUCores
		g.MaxMemory = size.MemoryMB
		g.DiskGB = size.DiskGB
	}
	orderShape(&g, tags[awsFlavorTag])

	if inst.LaunchTime != nil {
		g.CreateDate = *inst.LaunchTime
		g.ModifyDate = *inst.LaunchTime
	}
	if inst.Placement != nil && inst.Placement.AvailabilityZone != nil {
		zone := aws.ToString(inst.Placement.AvailabilityZone)
		g.Datacenter = &guest.Datacenter{ID: zone, Name: zone, LongName: p.region}
		if r, ok := coreprovider.LookupRegion(coreprovider.TypeAWS, zone); ok {
			g.Datacenter.LongName = r.Name
		}
	}
	for _, sg := range inst.SecurityGroups {
		if name := aws.ToString(sg.GroupName); name != "" {
			g.SecurityGroups = append(g.SecurityGroups, name)
		}
	}

	var state ec2types.InstanceStateName
	if inst.State != nil {
		state = inst.State.Name
	}
	g.Status, g.PowerState, g.ActiveTransaction = awsState(state)
	return g
}

func awsState(state ec2types.InstanceStateName) (*guest.Status, *guest.PowerState, *guest.Transaction) {
	st := &guest.Status{KeyName: guest.StatusActive}
	power := &guest.PowerState{KeyName: guest.PowerRunning}
	var tx *guest.Transaction

	switch state {
	case ec2types.InstanceStateNamePending:
		tx = &guest.Transaction{Name: guest.TransactionProvision}
		power.KeyName = guest.PowerHalted
	case ec2types.InstanceStateNameRunning:
	case ec2types.InstanceStateNameStopping, ec2types.InstanceStateNameStopped:
		power.KeyName = guest.PowerHalted
	case ec2types.InstanceStateNameShuttingDown, ec2types.InstanceStateNameTerminated:
		st.KeyName = guest.StatusDeactive
		power.KeyName = guest.PowerHalted
	default:
		st.KeyName = guest.StatusDisconnected
	}
	return st, power, tx
}
