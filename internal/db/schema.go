package db

import "strings"

// schemaTemplate is the single authoritative schema. Tokens are replaced per
// driver by Schema:
//   {{ID}}     auto-increment primary key
//   {{BYTES}}  binary column
//   {{TS}}     timestamp column
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS media_assets (
    id           {{ID}},
    file_name    VARCHAR(255) NOT NULL,
    storage_path VARCHAR(255) NOT NULL,
    mime_type    VARCHAR(50),
    created_at   {{TS}} NOT NULL
);

CREATE TABLE IF NOT EXISTS campaigns (
    id              {{ID}},
    campaign_key    VARCHAR(40) NOT NULL UNIQUE,
    event_name      VARCHAR(100) NOT NULL,
    sender_number   VARCHAR(20) NOT NULL,
    message_title   VARCHAR(120) NOT NULL,
    message_body    TEXT NOT NULL,
    banner_asset_id BIGINT REFERENCES media_assets(id),
    status          VARCHAR(20) NOT NULL DEFAULT 'DRAFT',
    scheduled_at    {{TS}},
    created_at      {{TS}} NOT NULL,
    updated_at      {{TS}} NOT NULL
);

CREATE TABLE IF NOT EXISTS campaign_recipients (
    id          {{ID}},
    campaign_id BIGINT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
    enc_phone   {{BYTES}} NOT NULL,
    phone_hash  {{BYTES}} NOT NULL,
    enc_name    {{BYTES}},
    status      VARCHAR(20) NOT NULL DEFAULT 'PENDING',
    created_at  {{TS}} NOT NULL,
    updated_at  {{TS}} NOT NULL,
    UNIQUE (campaign_id, phone_hash)
);
CREATE INDEX IF NOT EXISTS ix_recipient_campaign_status ON campaign_recipients (campaign_id, status);
CREATE INDEX IF NOT EXISTS ix_recipient_phone_hash ON campaign_recipients (phone_hash);

CREATE TABLE IF NOT EXISTS recipient_histories (
    id           {{ID}},
    recipient_id BIGINT NOT NULL REFERENCES campaign_recipients(id) ON DELETE CASCADE,
    action       VARCHAR(30) NOT NULL,
    old_value    TEXT,
    new_value    TEXT,
    created_by   VARCHAR(64) NOT NULL,
    created_at   {{TS}} NOT NULL
);

CREATE TABLE IF NOT EXISTS rendered_mms_assets (
    id           {{ID}},
    campaign_id  BIGINT NOT NULL REFERENCES campaigns(id),
    recipient_id BIGINT NOT NULL REFERENCES campaign_recipients(id),
    file_path    VARCHAR(255) NOT NULL,
    created_at   {{TS}} NOT NULL,
    UNIQUE (campaign_id, recipient_id)
);

CREATE TABLE IF NOT EXISTS coupon_products (
    id             {{ID}},
    goods_id       VARCHAR(40) NOT NULL UNIQUE,
    name           VARCHAR(120) NOT NULL,
    face_value     NUMERIC(12, 2) NOT NULL,
    purchase_price NUMERIC(12, 2) NOT NULL,
    valid_days     INTEGER,
    vendor_status  VARCHAR(20) NOT NULL,
    last_synced_at {{TS}},
    created_at     {{TS}} NOT NULL,
    updated_at     {{TS}} NOT NULL
);

CREATE TABLE IF NOT EXISTS campaign_products (
    id                {{ID}},
    campaign_id       BIGINT NOT NULL UNIQUE REFERENCES campaigns(id) ON DELETE CASCADE,
    coupon_product_id BIGINT NOT NULL REFERENCES coupon_products(id),
    unit_price        NUMERIC(12, 2) NOT NULL,
    created_at        {{TS}} NOT NULL
);

CREATE TABLE IF NOT EXISTS product_sync_logs (
    id            {{ID}},
    sync_type     VARCHAR(30) NOT NULL,
    response_code VARCHAR(30),
    synced_count  INTEGER NOT NULL DEFAULT 0,
    status        VARCHAR(20) NOT NULL,
    error_detail  TEXT,
    created_at    {{TS}} NOT NULL
);

CREATE TABLE IF NOT EXISTS coupon_issues (
    id             {{ID}},
    campaign_id    BIGINT NOT NULL REFERENCES campaigns(id),
    recipient_id   BIGINT NOT NULL UNIQUE REFERENCES campaign_recipients(id),
    order_id       VARCHAR(50) NOT NULL UNIQUE,
    barcode_enc    {{BYTES}},
    valid_end_date {{TS}},
    status         VARCHAR(20) NOT NULL,
    vendor_payload TEXT,
    issued_at      {{TS}},
    created_at     {{TS}} NOT NULL,
    updated_at     {{TS}} NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_issue_campaign_status ON coupon_issues (campaign_id, status);
CREATE INDEX IF NOT EXISTS ix_issue_status_updated ON coupon_issues (status, updated_at);

CREATE TABLE IF NOT EXISTS coupon_status_history (
    id              {{ID}},
    coupon_issue_id BIGINT NOT NULL REFERENCES coupon_issues(id) ON DELETE CASCADE,
    status          VARCHAR(20) NOT NULL,
    status_source   VARCHAR(20) NOT NULL,
    status_at       {{TS}} NOT NULL,
    memo            TEXT,
    created_at      {{TS}} NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_history_issue ON coupon_status_history (coupon_issue_id, status_at);

CREATE TABLE IF NOT EXISTS mms_jobs (
    id           {{ID}},
    campaign_id  BIGINT NOT NULL REFERENCES campaigns(id),
    recipient_id BIGINT NOT NULL REFERENCES campaign_recipients(id),
    client_key   VARCHAR(40) NOT NULL UNIQUE,
    req_date     {{TS}},
    status       VARCHAR(20) NOT NULL DEFAULT 'READY',
    retry_count  INTEGER NOT NULL DEFAULT 0,
    created_at   {{TS}} NOT NULL,
    updated_at   {{TS}} NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_job_campaign ON mms_jobs (campaign_id);

CREATE TABLE IF NOT EXISTS dispatch_results (
    id           {{ID}},
    mms_job_id   BIGINT NOT NULL UNIQUE REFERENCES mms_jobs(id) ON DELETE CASCADE,
    done_code    VARCHAR(10),
    done_desc    VARCHAR(255),
    telco        VARCHAR(10),
    sent_at      {{TS}},
    completed_at {{TS}},
    created_at   {{TS}} NOT NULL,
    updated_at   {{TS}} NOT NULL
);

CREATE TABLE IF NOT EXISTS cs_actions (
    id              {{ID}},
    request_id      VARCHAR(36) NOT NULL,
    coupon_issue_id BIGINT NOT NULL REFERENCES coupon_issues(id),
    recipient_id    BIGINT NOT NULL REFERENCES campaign_recipients(id),
    action_type     VARCHAR(30) NOT NULL,
    reason          TEXT,
    performed_by    VARCHAR(64) NOT NULL,
    performed_at    {{TS}} NOT NULL,
    result_status   VARCHAR(20) NOT NULL
);

CREATE TABLE IF NOT EXISTS encryption_keys (
    id         {{ID}},
    version    VARCHAR(20) NOT NULL UNIQUE,
    key_alias  VARCHAR(50) NOT NULL,
    rotated_at {{TS}},
    status     VARCHAR(20) NOT NULL DEFAULT 'ACTIVE',
    created_at {{TS}} NOT NULL
);
`

// Schema returns the DDL for driver ("postgres" or "sqlite3").
func Schema(driver string) string {
	r := strings.NewReplacer(
		"{{ID}}", "BIGSERIAL PRIMARY KEY",
		"{{BYTES}}", "BYTEA",
		"{{TS}}", "TIMESTAMPTZ",
	)
	if driver == "sqlite3" {
		r = strings.NewReplacer(
			"{{ID}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
			"{{BYTES}}", "BLOB",
			"{{TS}}", "TIMESTAMP",
		)
	}
	return r.Replace(schemaTemplate)
}
