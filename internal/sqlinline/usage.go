package sqlinline

const QInsertUsageEvent = `--sql 3b02d4d0-89aa-435e-8607-441c7f94ecea
insert into usage_events (id, user_id, job_id, event_type, success, latency_ms, created_at, properties)
values (gen_random_uuid(), $1::uuid, $2::uuid, $3::text, $4::boolean, $5::int, now(), coalesce($6::jsonb, '{}'::jsonb));
`
