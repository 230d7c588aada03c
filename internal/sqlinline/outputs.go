package sqlinline

// QInsertOutput relies on the unique constraint on job_id: a concurrent
// duplicate insert surfaces as a 23505 the writer treats as benign.
const QInsertOutput = `--sql fa4bc95a-0fe8-48d3-9392-368088d333a3
insert into audio_outputs (id, job_id, user_id, provider, storage_key, public_url, mime, bytes, created_at)
values (gen_random_uuid(), $1::uuid, $2::uuid, $3::text, $4::text, $5::text, $6::text, $7::bigint, now())
returning id;
`

const QSelectOutputByJob = `--sql 0dd72196-e45f-4377-8440-4fedc7f33491
select id, job_id, user_id, provider, storage_key, coalesce(public_url, ''), mime, bytes, created_at
from audio_outputs
where job_id = $1::uuid;
`
