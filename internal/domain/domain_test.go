package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/domain"
)

func TestDeliveryStatus_Transitions(t *testing.T) {
	all := []domain.DeliveryStatus{
		domain.DeliveryStatusPending,
		domain.DeliveryStatusAccepted,
		domain.DeliveryStatusPickedUp,
		domain.DeliveryStatusInTransit,
		domain.DeliveryStatusDelivered,
		domain.DeliveryStatusCancelled,
	}
	legal := map[[2]domain.DeliveryStatus]bool{
		{domain.DeliveryStatusPending, domain.DeliveryStatusAccepted}:    true,
		{domain.DeliveryStatusPending, domain.DeliveryStatusCancelled}:   true,
		{domain.DeliveryStatusAccepted, domain.DeliveryStatusPickedUp}:   true,
		{domain.DeliveryStatusPickedUp, domain.DeliveryStatusInTransit}:  true,
		{domain.DeliveryStatusInTransit, domain.DeliveryStatusDelivered}: true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, legal[[2]domain.DeliveryStatus{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
		assert.True(t, from.Valid())
	}

	assert.False(t, domain.DeliveryStatus("lost").Valid())
	assert.True(t, domain.DeliveryStatusDelivered.IsTerminal())
	assert.True(t, domain.DeliveryStatusCancelled.IsTerminal())
	assert.False(t, domain.DeliveryStatusInTransit.IsTerminal())
}

func TestDelivery_StampKeepsFirstDeliveryTime(t *testing.T) {
	first := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	d := &domain.Delivery{}

	d.Stamp(domain.DeliveryStatusAccepted, first)
	d.Stamp(domain.DeliveryStatusDelivered, first)
	d.Stamp(domain.DeliveryStatusDelivered, first.Add(time.Hour))

	require.NotNil(t, d.AcceptedAt)
	require.NotNil(t, d.ActualDeliveryTime)
	assert.Equal(t, first, *d.ActualDeliveryTime)
}

func TestDelivery_PartyAndOpen(t *testing.T) {
	d := &domain.Delivery{RequesterID: "seller-1", Status: domain.DeliveryStatusPending}
	assert.True(t, d.IsParty("seller-1"))
	assert.False(t, d.IsParty(""))
	assert.True(t, d.IsOpen())

	d.AssigneeID = "driver-1"
	assert.True(t, d.IsParty("driver-1"))
	assert.False(t, d.IsOpen(), "pre-assigned deliveries are not open")
}

func TestQuote_EffectiveStatus(t *testing.T) {
	end := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	before := end.Add(-time.Minute)
	after := end.Add(time.Minute)

	tests := []struct {
		stored domain.QuoteStatus
		now    time.Time
		want   domain.QuoteStatus
	}{
		{domain.QuoteStatusPending, before, domain.QuoteStatusPending},
		{domain.QuoteStatusPending, after, domain.QuoteStatusExpired},
		{domain.QuoteStatusApproved, after, domain.QuoteStatusExpired},
		{domain.QuoteStatusPending, end, domain.QuoteStatusPending},
		{domain.QuoteStatusRejected, after, domain.QuoteStatusRejected},
		{domain.QuoteStatusConverted, after, domain.QuoteStatusConverted},
	}
	for _, tt := range tests {
		q := &domain.Quote{Status: tt.stored, Validity: domain.ValidityPeriod{End: end}}
		assert.Equal(t, tt.want, q.EffectiveStatus(tt.now), "%s at %s", tt.stored, tt.now)
	}
}

func TestQuoteStatus_Transitions(t *testing.T) {
	assert.True(t, domain.QuoteStatusPending.CanTransitionTo(domain.QuoteStatusConverted))
	assert.True(t, domain.QuoteStatusApproved.CanTransitionTo(domain.QuoteStatusExpired))
	assert.False(t, domain.QuoteStatusApproved.CanTransitionTo(domain.QuoteStatusRejected))
	assert.False(t, domain.QuoteStatusRejected.CanTransitionTo(domain.QuoteStatusConverted))
	assert.False(t, domain.QuoteStatusConverted.CanTransitionTo(domain.QuoteStatusPending))
	assert.False(t, domain.QuoteStatusExpired.CanTransitionTo(domain.QuoteStatusApproved))
}

func TestRole_Codes(t *testing.T) {
	assert.Equal(t, "S", domain.RoleSeller.Code())
	assert.Equal(t, "L", domain.RoleLogisticsCompany.Code())
	assert.Equal(t, "D", domain.RoleDriver.Code())
	assert.Equal(t, "SA", domain.RoleSourcingAgent.Code())
	assert.Equal(t, "IC", domain.RoleImportCoach.Code())
	assert.Equal(t, "U", domain.Role("pilot").Code())

	assert.True(t, domain.RoleDriver.CanFulfil())
	assert.True(t, domain.RoleLogisticsCompany.CanFulfil())
	assert.False(t, domain.RoleSeller.CanFulfil())
}

func TestDecodeRoleProfile(t *testing.T) {
	p, err := domain.DecodeRoleProfile(domain.RoleDriver,
		json.RawMessage(`{"license_number":"D-1","vehicle_type":"car","vehicle_plate":"X1"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.RoleDriver, p.Role())
	assert.Equal(t, domain.VehicleCar, domain.ProfileVehicleType(p))

	_, err = domain.DecodeRoleProfile(domain.RoleDriver, json.RawMessage(`{"license_number":"D-1","hourly_rate":3}`))
	assert.ErrorIs(t, err, domain.ErrInvalidProfile, "unknown fields are rejected")

	_, err = domain.DecodeRoleProfile(domain.RoleSeller, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidProfile)

	_, err = domain.DecodeRoleProfile(domain.RoleLogisticsCompany, json.RawMessage(`{"company_name":"Acme"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidProfile)

	_, err = domain.DecodeRoleProfile(domain.Role("pilot"), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, domain.ErrInvalidProfile)
}

func TestCoordinate_Valid(t *testing.T) {
	assert.True(t, domain.Coordinate{Latitude: 90, Longitude: -180}.Valid())
	assert.False(t, domain.Coordinate{Latitude: 90.01, Longitude: 0}.Valid())
	assert.False(t, domain.Coordinate{Latitude: 0, Longitude: 180.5}.Valid())
}
