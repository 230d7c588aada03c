package sqlinline

// QReserveQuotaStandard conditionally decrements the standard counter and
// appends the reserve ledger row in one statement. Updates zero rows when the
// balance is insufficient; the ledger insert then inserts nothing.
const QReserveQuotaStandard = `--sql 8c76d6e3-f231-4937-a945-ec194c8f5f1b
with debited as (
    update quota_accounts
    set seconds_standard = seconds_standard - $2::int, updated_at = now()
    where user_id = $1::uuid and seconds_standard >= $2::int
    returning user_id
)
insert into quota_ledger (id, user_id, action, tier, amount, job_id, reason, created_at)
select gen_random_uuid(), user_id, 'reserve', 'standard', -$2::int, $3::uuid, '', now()
from debited
returning user_id;
`

const QReserveQuotaPremium = `--sql 97ad048b-ebdc-47cc-8878-92faa8ac35d7
with debited as (
    update quota_accounts
    set seconds_premium = seconds_premium - $2::int, updated_at = now()
    where user_id = $1::uuid and seconds_premium >= $2::int
    returning user_id
)
insert into quota_ledger (id, user_id, action, tier, amount, job_id, reason, created_at)
select gen_random_uuid(), user_id, 'reserve', 'premium', -$2::int, $3::uuid, '', now()
from debited
returning user_id;
`

// Refunds are unconditional compensating entries.
const QRefundQuotaStandard = `--sql 88840d75-f61d-4797-ad14-670ff7f944c0
with credited as (
    update quota_accounts
    set seconds_standard = seconds_standard + $2::int, updated_at = now()
    where user_id = $1::uuid
    returning user_id
)
insert into quota_ledger (id, user_id, action, tier, amount, job_id, reason, created_at)
select gen_random_uuid(), user_id, 'refund', 'standard', $2::int, $3::uuid, $4::text, now()
from credited;
`

const QRefundQuotaPremium = `--sql f59b2d15-413a-41c9-8076-67c0e8af27e9
with credited as (
    update quota_accounts
    set seconds_premium = seconds_premium + $2::int, updated_at = now()
    where user_id = $1::uuid
    returning user_id
)
insert into quota_ledger (id, user_id, action, tier, amount, job_id, reason, created_at)
select gen_random_uuid(), user_id, 'refund', 'premium', $2::int, $3::uuid, $4::text, now()
from credited;
`

// QGrantQuota creates the account row on first grant. The credit and the
// creation must be one insert: separate CTEs share the statement snapshot,
// so an update sub-statement would never see a row inserted beside it.
const QGrantQuota = `--sql 5f2e8d41-9a06-4b7c-8e53-d17c40afb928
with credited as (
    insert into quota_accounts (user_id, seconds_standard, seconds_premium, updated_at)
    values (
        $1::uuid,
        case when $2::text = 'standard' then $3::int else 0 end,
        case when $2::text = 'premium'  then $3::int else 0 end,
        now()
    )
    on conflict (user_id) do update set
        seconds_standard = quota_accounts.seconds_standard + excluded.seconds_standard,
        seconds_premium  = quota_accounts.seconds_premium  + excluded.seconds_premium,
        updated_at = now()
    returning user_id
)
insert into quota_ledger (id, user_id, action, tier, amount, job_id, reason, created_at)
select gen_random_uuid(), user_id, 'grant', $2::text, $3::int, null, $4::text, now()
from credited;
`

const QSelectQuotaAccount = `--sql c26abb8a-7725-4b70-82cc-73601b8b04ee
select user_id, seconds_standard, seconds_premium, updated_at
from quota_accounts
where user_id = $1::uuid;
`

const QSelectQuotaLedger = `--sql b72ccfcd-7413-4884-8bec-e709027c5d66
select id, user_id, action, tier, amount, coalesce(job_id::text, ''), reason, created_at
from quota_ledger
where user_id = $1::uuid
order by created_at desc
limit $2::int;
`
