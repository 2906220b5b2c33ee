package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/popeskul/review-sms/internal/models"
	"github.com/popeskul/review-sms/internal/phone"
	"github.com/popeskul/review-sms/internal/service"
)

type CreateCustomerRequest struct {
	Name            string     `json:"name"`
	PhoneRegion     string     `json:"phone_region"`
	PhoneLocal      string     `json:"phone_local"`
	JobDescription  string     `json:"job_description"`
	ScheduledSendAt *time.Time `json:"scheduled_send_at,omitempty"`
}

type ScheduleRequest struct {
	ScheduledSendAt time.Time `json:"scheduled_send_at"`
}

type SendRequest struct {
	ConsentConfirmed bool `json:"consent_confirmed"`
}

type AccountSettingsRequest struct {
	BusinessName     string             `json:"business_name"`
	ReviewLinks      models.ReviewLinks `json:"review_links"`
	SMSTemplate      string             `json:"sms_template"`
	IncludeNameInSMS bool               `json:"include_name_in_sms"`
	IncludeJobInSMS  bool               `json:"include_job_in_sms"`
}

type CustomerResponse struct {
	ID              uuid.UUID            `json:"id"`
	Name            string               `json:"name"`
	PhoneRegion     string               `json:"phone_region"`
	PhoneLocal      string               `json:"phone_local"`
	PhoneE164       string               `json:"phone_e164,omitempty"`
	JobDescription  string               `json:"job_description,omitempty"`
	DeliveryState   models.DeliveryState `json:"delivery_state"`
	ScheduledSendAt *time.Time           `json:"scheduled_send_at,omitempty"`
	SentAt          *time.Time           `json:"sent_at,omitempty"`
	RequestCount    int                  `json:"request_count"`
	OptedOut        bool                 `json:"opted_out"`
	CreatedAt       time.Time            `json:"created_at"`
}

type CustomerListResponse struct {
	Customers  []CustomerResponse `json:"customers"`
	Pagination service.Pagination `json:"pagination"`
}

type MessageResponse struct {
	ID               uuid.UUID              `json:"id"`
	Body             string                 `json:"body"`
	SentAt           time.Time              `json:"sent_at"`
	CarrierMessageID string                 `json:"carrier_message_id"`
	DeliveryStatus   *models.DeliveryStatus `json:"delivery_status,omitempty"`
	ErrorCode        string                 `json:"error_code,omitempty"`
	ErrorMessage     string                 `json:"error_message,omitempty"`
}

type MessageListResponse struct {
	Messages []MessageResponse `json:"messages"`
}

type AccountResponse struct {
	ID               uuid.UUID           `json:"id"`
	Email            string              `json:"email,omitempty"`
	BusinessName     string              `json:"business_name"`
	ReviewLinks      models.ReviewLinks  `json:"review_links"`
	SMSTemplate      string              `json:"sms_template"`
	IncludeNameInSMS bool                `json:"include_name_in_sms"`
	IncludeJobInSMS  bool                `json:"include_job_in_sms"`
	Plan             models.Plan         `json:"plan"`
	AccessStatus     models.AccessStatus `json:"access_status"`
	SMSSentThisMonth int                 `json:"sms_sent_this_month"`
	MonthlyLimit     int                 `json:"monthly_limit"`
}

type SchedulerResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type SchedulerStatsResponse struct {
	Running   bool       `json:"running"`
	Runs      int64      `json:"runs"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

type ResetResponse struct {
	AccountsReset int64 `json:"accounts_reset"`
}

type HealthResponse struct {
	Status               string    `json:"status"`
	Timestamp            time.Time `json:"timestamp"`
	SchedulerStatus      *string   `json:"scheduler_status,omitempty"`
	DatabaseStatus       *string   `json:"database_status,omitempty"`
	RedisStatus          *string   `json:"redis_status,omitempty"`
	CircuitBreakerStatus *string   `json:"circuit_breaker_status,omitempty"`
	CircuitBreakerState  *string   `json:"circuit_breaker_state,omitempty"`
}

func newCustomerResponse(c *models.Customer) CustomerResponse {
	resp := CustomerResponse{
		ID:             c.ID,
		Name:           c.Name,
		PhoneRegion:    c.PhoneRegion,
		PhoneLocal:     c.PhoneLocal,
		JobDescription: c.JobDescription.String,
		DeliveryState:  c.DeliveryState,
		RequestCount:   c.RequestCount,
		OptedOut:       c.OptedOut,
		CreatedAt:      c.CreatedAt,
	}
	if canonical, err := phone.Normalize(c.PhoneLocal, c.PhoneRegion); err == nil {
		resp.PhoneE164 = canonical
	}
	if c.ScheduledSendAt.Valid {
		t := c.ScheduledSendAt.Time
		resp.ScheduledSendAt = &t
	}
	if c.SentAt.Valid {
		t := c.SentAt.Time
		resp.SentAt = &t
	}
	return resp
}

func newMessageResponse(m *models.Message) MessageResponse {
	return MessageResponse{
		ID:               m.ID,
		Body:             m.Body,
		SentAt:           m.SentAt,
		CarrierMessageID: m.CarrierMessageID,
		DeliveryStatus:   m.DeliveryStatus,
		ErrorCode:        m.DeliveryErrorCode.String,
		ErrorMessage:     m.DeliveryErrorMessage.String,
	}
}

func newAccountResponse(v *service.AccountView) AccountResponse {
	links := v.ReviewLinks
	if links == nil {
		links = models.ReviewLinks{}
	}
	return AccountResponse{
		ID:               v.ID,
		Email:            v.Email.String,
		BusinessName:     v.BusinessName,
		ReviewLinks:      links,
		SMSTemplate:      v.SMSTemplate,
		IncludeNameInSMS: v.IncludeNameInSMS,
		IncludeJobInSMS:  v.IncludeJobInSMS,
		Plan:             v.Plan,
		AccessStatus:     v.AccessStatus,
		SMSSentThisMonth: v.SMSSentThisMonth,
		MonthlyLimit:     v.MonthlyLimit,
	}
}
