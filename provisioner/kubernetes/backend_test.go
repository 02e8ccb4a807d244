package kubernetes

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gammadia/spawner/provisioner"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	k8sfake "k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

var silentLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type okStorage struct{}

func (okStorage) Check(context.Context, string) error { return nil }

func testSpec() *provisioner.ResourceSpec {
	return &provisioner.ResourceSpec{
		Name:     "spawner-node-50-0123456789ab",
		Labels:   map[string]string{provisioner.LabelApp: "spawner-node"},
		Image:    "ghcr.io/gammadia/spawner-node:latest",
		Port:     8080,
		Requests: provisioner.Resources{CPU: "1", Memory: "2Gi"},
		Limits:   provisioner.Resources{CPU: "2", Memory: "4Gi"},
		Env:      map[string]string{"NODE_TOKEN": "t0k3n", "STORAGE_BUCKET": "results"},
	}
}

func TestSubmitCreatesPod(t *testing.T) {
	clientset := k8sfake.NewSimpleClientset()
	b := NewWithClientset(clientset, Config{Logger: silentLogger, ServiceAccount: "spawner-node"})

	require.NoError(t, b.Submit(context.Background(), "workers", testSpec()))

	pod, err := clientset.CoreV1().Pods("workers").Get(context.Background(), "spawner-node-50-0123456789ab", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "spawner-node", pod.Labels[provisioner.LabelApp])
	assert.Equal(t, corev1.RestartPolicyNever, pod.Spec.RestartPolicy)
	assert.Equal(t, "spawner-node", pod.Spec.ServiceAccountName)

	require.Len(t, pod.Spec.Containers, 1)
	container := pod.Spec.Containers[0]
	assert.Equal(t, "ghcr.io/gammadia/spawner-node:latest", container.Image)
	assert.Equal(t, int32(8080), container.Ports[0].ContainerPort)
	assert.Equal(t, []corev1.EnvVar{
		{Name: "NODE_TOKEN", Value: "t0k3n"},
		{Name: "STORAGE_BUCKET", Value: "results"},
	}, container.Env)
	assert.True(t, resource.MustParse("2Gi").Equal(container.Resources.Requests[corev1.ResourceMemory]))
	assert.True(t, resource.MustParse("2").Equal(container.Resources.Limits[corev1.ResourceCPU]))
}

func TestSubmitRejectsInvalidQuantity(t *testing.T) {
	b := NewWithClientset(k8sfake.NewSimpleClientset(), Config{Logger: silentLogger})
	spec := testSpec()
	spec.Limits.Memory = "lots"

	err := b.Submit(context.Background(), "workers", spec)
	assert.ErrorContains(t, err, "invalid resource limits: memory 'lots'")
}

func TestAddress(t *testing.T) {
	clientset := k8sfake.NewSimpleClientset(
		&corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: "pending", Namespace: "workers"},
			Status:     corev1.PodStatus{Phase: corev1.PodPending},
		},
		&corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: "running", Namespace: "workers"},
			Status:     corev1.PodStatus{Phase: corev1.PodRunning, PodIP: "10.42.1.9"},
		},
		&corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: "crashed", Namespace: "workers"},
			Status:     corev1.PodStatus{Phase: corev1.PodFailed, PodIP: "10.42.1.10"},
		},
	)
	b := NewWithClientset(clientset, Config{Logger: silentLogger})

	address, err := b.Address(context.Background(), "pending", "workers")
	require.NoError(t, err)
	assert.Empty(t, address)

	address, err = b.Address(context.Background(), "running", "workers")
	require.NoError(t, err)
	assert.Equal(t, "10.42.1.9", address)

	_, err = b.Address(context.Background(), "crashed", "workers")
	assert.ErrorContains(t, err, "has terminated with phase Failed")

	_, err = b.Address(context.Background(), "missing", "workers")
	assert.Error(t, err)
}

func TestDeleteIgnoresMissingPod(t *testing.T) {
	clientset := k8sfake.NewSimpleClientset(&corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "node", Namespace: "workers"},
	})
	b := NewWithClientset(clientset, Config{Logger: silentLogger})

	require.NoError(t, b.Delete(context.Background(), "node", "workers"))
	require.NoError(t, b.Delete(context.Background(), "node", "workers"))

	_, err := clientset.CoreV1().Pods("workers").Get(context.Background(), "node", metav1.GetOptions{})
	assert.True(t, apierrors.IsNotFound(err))
}

func TestDeleteFailure(t *testing.T) {
	clientset := k8sfake.NewSimpleClientset()
	clientset.PrependReactor("delete", "pods", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewForbidden(schema.GroupResource{Resource: "pods"}, "node", errors.New("denied"))
	})
	b := NewWithClientset(clientset, Config{Logger: silentLogger})

	assert.ErrorContains(t, b.Delete(context.Background(), "node", "workers"), "failed to delete pod workers/node")
}

// The pod gets its IP on the third read.
func TestProvisionerCreatesAndDestroysPod(t *testing.T) {
	clientset := k8sfake.NewSimpleClientset()
	var reads atomic.Int32
	clientset.PrependReactor("get", "pods", func(action k8stesting.Action) (bool, runtime.Object, error) {
		get := action.(k8stesting.GetAction)
		obj, err := clientset.Tracker().Get(get.GetResource(), get.GetNamespace(), get.GetName())
		if err != nil {
			return true, nil, err
		}
		pod := obj.(*corev1.Pod).DeepCopy()
		if reads.Add(1) >= 3 {
			pod.Status.Phase = corev1.PodRunning
			pod.Status.PodIP = "10.42.3.3"
		}
		return true, pod, nil
	})

	v := viper.New()
	v.Set(provisioner.KeyStorageAccessKey, "access")
	v.Set(provisioner.KeyStorageSecretKey, "secret")
	v.Set(provisioner.KeyStorageEndpoint, "http://minio:9000")
	v.Set(provisioner.KeyStorageBucket, "results")
	v.Set(provisioner.KeyNamespace, "workers")
	v.Set(provisioner.KeyPollInterval, time.Millisecond)

	p := provisioner.New(
		NewWithClientset(clientset, Config{Logger: silentLogger}),
		provisioner.NewConfig(v),
		provisioner.WithLogger(silentLogger),
		provisioner.WithStorage(okStorage{}),
	)
	require.NoError(t, p.Initialize(context.Background()))
	assert.Equal(t, Driver, p.DriverName())

	node, err := p.CreateNode(context.Background(), provisioner.Request{Size: 50})
	require.NoError(t, err)
	assert.Equal(t, "10.42.3.3", node.Address)
	assert.Equal(t, int32(3), reads.Load())

	pods, err := clientset.CoreV1().Pods("workers").List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	require.Len(t, pods.Items, 1)

	p.DestroyNode(context.Background(), node)
	pods, err = clientset.CoreV1().Pods("workers").List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, pods.Items)
}
