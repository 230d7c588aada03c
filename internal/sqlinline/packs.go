package sqlinline

const QSelectAdPack = `--sql c9fb46f0-737d-43b3-ab01-ae50c86370ef
select id, user_id, product_name, coalesce(brief, ''), coalesce(reference_image_urls, '{}'), created_at
from ad_packs
where id = $1::uuid;
`

const QSelectPackVariants = `--sql 0e1d626e-3ea5-4daa-96af-0c13a9ff243d
select id, pack_id, user_id, angle, status, coalesce(error_message, ''), created_at, updated_at
from ad_variants
where pack_id = $1::uuid
order by created_at asc;
`

const QSelectVariantsForGeneration = `--sql 6dc01376-0595-44fc-ad37-7e1287bb34ba
select id, pack_id, user_id, angle, status, coalesce(error_message, ''), created_at, updated_at
from ad_variants
where pack_id = $1::uuid and status = 'queued'
order by created_at asc;
`

const QUpdateVariantStatus = `--sql 01ac53aa-c02f-4381-aa66-a20d71c00537
update ad_variants
set status = $2::text, error_message = $3::text, updated_at = now()
where id = $1::uuid;
`

const QUpsertShotResult = `--sql ef06adde-7f3d-4338-9380-960801c19271
insert into variant_shots (variant_id, shot_index, shot_type, spatial_role, attempt, storage_key, error, created_at)
values ($1::uuid, $2::int, $3::text, $4::text, $5::int, $6::text, $7::text, now())
on conflict (variant_id, shot_index) do update set
    shot_type = excluded.shot_type,
    spatial_role = excluded.spatial_role,
    attempt = excluded.attempt,
    storage_key = excluded.storage_key,
    error = excluded.error,
    created_at = now();
`

const QSelectVariantShots = `--sql 46446216-9647-425e-a2f2-d372c745b841
select variant_id, shot_index, shot_type, spatial_role, attempt, coalesce(storage_key, ''), coalesce(error, ''), created_at
from variant_shots
where variant_id = $1::uuid
order by shot_index asc;
`
