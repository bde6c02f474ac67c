package constants

// System table names for the portal web form engine
const (
	TableWebForm        = "_System_WebForm"
	TableWebFormStep    = "_System_WebFormStep"
	TableWebFormSession = "_System_WebFormSession"
)

// Common record fields
const (
	FieldID        = "id"
	FieldName      = "name"
	FieldEmail     = "email"
	FieldIsDeleted = "is_deleted"
)

// _System_WebForm fields
const (
	FieldSysWebForm_Name               = "name"
	FieldSysWebForm_StartStepID        = "start_step_id"
	FieldSysWebForm_SavePastRecords    = "save_past_records"
	FieldSysWebForm_EditExistingRecord = "edit_existing_record"
)

// _System_WebFormStep fields
const (
	FieldSysWebFormStep_WebFormID                  = "web_form_id"
	FieldSysWebFormStep_Name                       = "name"
	FieldSysWebFormStep_Type                       = "type"
	FieldSysWebFormStep_NextStepID                 = "next_step_id"
	FieldSysWebFormStep_ConditionDefaultNextStepID = "condition_default_next_step_id"
	FieldSysWebFormStep_SourceStrategy             = "source_strategy"
	FieldSysWebFormStep_SourceParam                = "source_param"
	FieldSysWebFormStep_SourceRelationship         = "source_relationship"
	FieldSysWebFormStep_SourceStepID               = "source_step_id"
	FieldSysWebFormStep_ParamIsPrimaryKey          = "param_is_primary_key"
	FieldSysWebFormStep_CreateIfAbsent             = "create_if_absent"
	FieldSysWebFormStep_TargetEntity               = "target_entity"
	FieldSysWebFormStep_TargetPrimaryKey           = "target_primary_key"
	FieldSysWebFormStep_Mode                       = "mode"
	FieldSysWebFormStep_ConditionExpression        = "condition_expression"
	FieldSysWebFormStep_RedirectURL                = "redirect_url"
	FieldSysWebFormStep_AllowRetreat               = "allow_retreat"
)

// _System_WebFormSession fields
const (
	FieldSysWebFormSession_WebFormID           = "web_form_id"
	FieldSysWebFormSession_CurrentStepID       = "current_step_id"
	FieldSysWebFormSession_CurrentStepIndex    = "current_step_index"
	FieldSysWebFormSession_StepHistory         = "step_history"
	FieldSysWebFormSession_PrimaryRecordEntity = "primary_record_entity"
	FieldSysWebFormSession_PrimaryRecordKey    = "primary_record_key"
	FieldSysWebFormSession_PrimaryRecordID     = "primary_record_id"
	FieldSysWebFormSession_ContactID           = "contact_id"
	FieldSysWebFormSession_AnonymousID         = "anonymous_id"
	FieldSysWebFormSession_IsActive            = "is_active"
	FieldSysWebFormSession_CreatedDate         = "created_date"
	FieldSysWebFormSession_LastModifiedDate    = "last_modified_date"
)

// Request context and header keys
const (
	ContextKeyUser      = "user"
	HeaderAuthorization = "Authorization"
)

// Response envelope keys
const (
	ResponseError   = "error"
	ResponseMessage = "message"
	ResponseData    = "data"
)
