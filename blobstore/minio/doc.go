// Package minio stores partial-result archives in MinIO or any other
// S3-compatible server (Ceph, Garage, SeaweedFS) through the MinIO client,
// without the AWS SDK.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := minioblob.NewStore(client, "my-bucket", "jobs/")
package minio
