package sqlinline

const QInsertAudioJob = `--sql 14d492d0-062d-4efc-9d9e-f1d2cc3c1de8
insert into audio_jobs (id, user_id, audio_type, status, duration_sec, preset, text, voice_id, created_at)
values ($1::uuid, $2::uuid, $3::text, 'queued', $4::int, $5::text, $6::text, $7::text, now());
`

const QSelectAudioJob = `--sql 01a42dc2-95c4-44c9-8f18-7eb4cafa8f52
select id, user_id, audio_type, status, duration_sec, preset, text, voice_id,
       coalesce(worker_id, ''), coalesce(error_message, ''), created_at, started_at, completed_at
from audio_jobs
where id = $1::uuid;
`

const QSelectAudioJobForUser = `--sql b0714349-8637-447b-a78e-3aee7b9b534c
select id, user_id, audio_type, status, duration_sec, preset, text, voice_id,
       coalesce(worker_id, ''), coalesce(error_message, ''), created_at, started_at, completed_at
from audio_jobs
where id = $1::uuid and user_id = $2::uuid;
`

// QCompleteAudioJob and QFailAudioJob both carry the worker ownership
// predicate: a worker that lost the row (or never held it) affects zero rows.
const QCompleteAudioJob = `--sql 960f78b2-ace3-47fc-90b9-c7191c49078f
update audio_jobs
set status = 'succeeded', completed_at = now()
where id = $1::uuid and worker_id = $2::text and status = 'running';
`

const QFailAudioJob = `--sql 9303101c-f7ac-440f-8851-0f8d50569f12
update audio_jobs
set status = 'failed', error_message = $3::text, completed_at = now()
where id = $1::uuid and worker_id = $2::text and status = 'running';
`

const QDeleteAudioJob = `--sql f2273be8-50d9-41fa-9f9d-bf3a85fe3212
delete from audio_jobs
where id = $1::uuid and status = 'queued';
`
